package swclient

import (
	"errors"
	"sync"
)

// ExtendableEvent is the completion token handed to every lifecycle
// handler. Work registered through WaitUntil extends the event: the host
// must not finalize the event (or tear the controller down) until Wait
// returns.
type ExtendableEvent struct {
	wg sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// WaitUntil ties fn's completion to this event's lifetime. fn runs
// asynchronously; its error is collected and surfaced by Wait.
func (e *ExtendableEvent) WaitUntil(fn func() error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := fn(); err != nil {
			e.mu.Lock()
			e.errs = append(e.errs, err)
			e.mu.Unlock()
		}
	}()
}

// Wait blocks until every piece of registered work has finished and
// returns their joined errors, if any.
func (e *ExtendableEvent) Wait() error {
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	return errors.Join(e.errs...)
}
