package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer buffers funnel events in an inbox channel and writes them
// asynchronously: publishing must never block or fail a checkout operation.
type Producer struct {
	w         *kafka.Writer
	log       *slog.Logger
	inbox     chan kafka.Message
	closeCh   chan struct{}
	closeOnce sync.Once
}

func NewProducer(brokers []string, topic string, buf int, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		defer p.w.Close()
		for {
			select {
			case <-ctx.Done():
				// flush what is already queued, then exit
				for {
					select {
					case m, ok := <-p.inbox:
						if !ok {
							return
						}
						p.write(m)
					default:
						return
					}
				}
			case m, ok := <-p.inbox:
				if !ok {
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Warn("funnel event write failed", "err", err)
	}
}

// Publish enqueues an event; if the inbox is full the event is dropped rather
// than stalling the caller.
func (p *Producer) Publish(key, value []byte) {
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now()}:
	default:
		p.log.Warn("funnel event dropped, inbox full")
	}
}

// Close stops accepting events; the loop flushes what is queued and exits.
func (p *Producer) Close() { p.closeOnce.Do(func() { close(p.inbox) }) }

// WaitClosed blocks until the flush loop finished.
func (p *Producer) WaitClosed() { <-p.closeCh }
