package core

// Listener receives the payload of matching event frames. Listeners are
// compared by pointer identity, which is what makes AddListener idempotent
// for the identical (source, event, listener) triple.
type Listener struct {
	fn func(payload any)
}

// NewListener wraps fn as a Listener.
func NewListener(fn func(payload any)) *Listener {
	return &Listener{fn: fn}
}

// Notify invokes the wrapped function. A nil listener or function is a no-op.
func (l *Listener) Notify(payload any) {
	if l == nil || l.fn == nil {
		return
	}
	l.fn(payload)
}
