package observatory

import "sync"

// Token identifies a registered observer so it can be removed on teardown.
// Callers must retain the token for as long as they want to stay subscribed.
type Token int64

// Observatory fans values out to registered observers. It replaces ad-hoc
// callback fields so subscription lifecycle is explicit: Append returns a
// Token, Remove releases it.
type Observatory[T any] struct {
	mu        sync.Mutex
	next      Token
	observers map[Token]func(T)
}

func New[T any]() *Observatory[T] {
	return &Observatory[T]{observers: make(map[Token]func(T))}
}

// Append registers an observer and returns its token.
func (o *Observatory[T]) Append(fn func(T)) Token {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	token := o.next
	o.observers[token] = fn
	return token
}

// Remove deregisters the observer behind token. Removing an unknown token is
// a no-op.
func (o *Observatory[T]) Remove(token Token) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.observers, token)
}

// Notify invokes every registered observer with value. Observers run on the
// caller's goroutine, in unspecified order.
func (o *Observatory[T]) Notify(value T) {
	o.mu.Lock()
	fns := make([]func(T), 0, len(o.observers))
	for _, fn := range o.observers {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}
