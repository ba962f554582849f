package redisx

import "time"

const (
	// Checkout session state: checkout:session:{session_id} -> Session JSON
	KeySession = "checkout:session:%s"

	// One-shot order submit guard: checkout:submitted:{session_id} -> "1"
	KeySubmitted = "checkout:submitted:%s"
)

var (
	// Sessions live long enough to survive reloads and abandoned-cart
	// recovery windows.
	TTLSession = 24 * time.Hour

	// The submit guard outlives the session so a stale tab cannot resubmit.
	TTLSubmitted = 48 * time.Hour
)
