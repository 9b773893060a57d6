package flow

import "sync"

// Tee fans one conduit out to n independent copies, each replaying the
// identical item sequence. The upstream is read exactly once; items are
// buffered centrally and each copy is served from the shared buffer, so a
// slow consumer never throttles its siblings and the source is never
// replayed.
func Tee[T any](in <-chan T, n int) []<-chan T {
	bufs := make([]*buffer[T], n)
	outs := make([]<-chan T, n)
	for i := range bufs {
		bufs[i] = newBuffer[T]()
		outs[i] = bufs[i].out()
	}
	go func() {
		for item := range in {
			for _, b := range bufs {
				b.put(item)
			}
		}
		for _, b := range bufs {
			b.closeBuf()
		}
	}()
	return outs
}

// buffer is an unbounded FIFO bridging a producer that must never block to a
// channel consumer. put appends; a dedicated goroutine drains the queue into
// the output channel.
type buffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []T
	closed bool
	ch     chan T
}

func newBuffer[T any]() *buffer[T] {
	b := &buffer[T]{ch: make(chan T)}
	b.cond = sync.NewCond(&b.mu)
	go b.pump()
	return b
}

func (b *buffer[T]) put(item T) {
	b.mu.Lock()
	b.queue = append(b.queue, item)
	b.mu.Unlock()
	b.cond.Signal()
}

func (b *buffer[T]) closeBuf() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Signal()
}

func (b *buffer[T]) out() <-chan T {
	return b.ch
}

func (b *buffer[T]) pump() {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			close(b.ch)
			return
		}
		item := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()
		b.ch <- item
	}
}
