package detector

import "context"

// wakeSignal tells the recognition loop that new samples exist. It holds at
// most one pending notification: notifying while one is already pending is
// a no-op, so a fast producer never builds a backlog for a slow consumer.
// Every consumed notification is followed by exactly one cycle, and a
// cycle only runs after a sample has been pushed since the previous wait.
type wakeSignal struct {
	ch chan struct{}
}

func newWakeSignal() *wakeSignal {
	return &wakeSignal{ch: make(chan struct{}, 1)}
}

// notify marks data as ready without blocking.
func (w *wakeSignal) notify() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// wait blocks until data is ready or ctx is done. It returns false when the
// loop should exit; cancellation wins even if a notification is pending.
func (w *wakeSignal) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-w.ch:
		return ctx.Err() == nil
	}
}

// drain discards a pending notification.
func (w *wakeSignal) drain() {
	select {
	case <-w.ch:
	default:
	}
}
