package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/videomaster/checkout-service/internal/checkout"
)

// SessionStore persists checkout sessions in redis with a TTL, and owns the
// one-shot submit guard (SETNX).
type SessionStore struct{ R *redis.Client }

var _ checkout.Store = (*SessionStore)(nil)

func (s *SessionStore) Get(ctx context.Context, id string) (*checkout.Session, error) {
	raw, err := s.R.Get(ctx, fmt.Sprintf(KeySession, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, checkout.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess checkout.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SessionStore) Put(ctx context.Context, sess *checkout.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, fmt.Sprintf(KeySession, sess.ID), raw, TTLSession).Err()
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.R.Del(ctx, fmt.Sprintf(KeySession, id), fmt.Sprintf(KeySubmitted, id)).Err()
}

func (s *SessionStore) MarkSubmitted(ctx context.Context, id string) (bool, error) {
	return s.R.SetNX(ctx, fmt.Sprintf(KeySubmitted, id), "1", TTLSubmitted).Result()
}

func (s *SessionStore) ClearSubmitted(ctx context.Context, id string) error {
	return s.R.Del(ctx, fmt.Sprintf(KeySubmitted, id)).Err()
}
