// Package flow provides the typed dataflow conduits the pipeline graph is
// built from: finite streams with explicit close, transformation,
// partitioning, grouping, cross joins, and N-way fan-out.
//
// A conduit is a plain receive-only Go channel. Every operator consumes its
// inputs exactly once and runs in its own goroutine, so a graph of operators
// is a set of concurrently firing nodes connected by channels. All streams
// are finite; operators close their outputs when their inputs are exhausted.
package flow

import "sort"

// From returns a conduit that yields the given items in order, then closes.
func From[T any](items ...T) <-chan T {
	out := make(chan T, len(items))
	for _, item := range items {
		out <- item
	}
	close(out)
	return out
}

// Closed returns a permanently empty conduit. It is what an inactive stage
// observes instead of a live input, so a consumer wired to it drains
// immediately rather than blocking forever.
func Closed[T any]() <-chan T {
	out := make(chan T)
	close(out)
	return out
}

// Collect drains a conduit into a slice.
func Collect[T any](in <-chan T) []T {
	var items []T
	for item := range in {
		items = append(items, item)
	}
	return items
}

// Drain consumes and discards a conduit. Used to detach consumers from
// streams whose results are not needed, keeping upstream senders unblocked.
func Drain[T any](in <-chan T) {
	go func() {
		for range in {
		}
	}()
}

// Map applies f to each item of in.
func Map[T, U any](in <-chan T, f func(T) U) <-chan U {
	out := make(chan U)
	go func() {
		defer close(out)
		for item := range in {
			out <- f(item)
		}
	}()
	return out
}

// Filter forwards the items of in for which keep returns true.
func Filter[T any](in <-chan T, keep func(T) bool) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for item := range in {
			if keep(item) {
				out <- item
			}
		}
	}()
	return out
}

// Partition splits in into two conduits by a total predicate: items for
// which pred returns true go to yes, the rest to no. Both outputs must be
// consumed; they are independently buffered so neither side can block the
// split on a slow reader.
func Partition[T any](in <-chan T, pred func(T) bool) (yes, no <-chan T) {
	y := newBuffer[T]()
	n := newBuffer[T]()
	go func() {
		for item := range in {
			if pred(item) {
				y.put(item)
			} else {
				n.put(item)
			}
		}
		y.closeBuf()
		n.closeBuf()
	}()
	return y.out(), n.out()
}

// A Group is the set of items sharing one key.
type Group[K comparable, T any] struct {
	Key   K
	Items []T
}

// GroupBy gathers in and emits one Group per distinct key. Grouping is a
// barrier: membership is only known once the input closes, so no group is
// emitted before then. Groups are emitted in ascending key order given by
// less, making downstream behavior independent of input arrival order.
func GroupBy[K comparable, T any](in <-chan T, key func(T) K, less func(a, b K) bool) <-chan Group[K, T] {
	out := make(chan Group[K, T])
	go func() {
		defer close(out)
		groups := map[K][]T{}
		var order []K
		for item := range in {
			k := key(item)
			if _, ok := groups[k]; !ok {
				order = append(order, k)
			}
			groups[k] = append(groups[k], item)
		}
		sort.Slice(order, func(i, j int) bool { return less(order[i], order[j]) })
		for _, k := range order {
			out <- Group[K, T]{Key: k, Items: groups[k]}
		}
	}()
	return out
}

// Merge interleaves any number of conduits into one, closing the output when
// all inputs are exhausted. No ordering is guaranteed across inputs.
func Merge[T any](ins ...<-chan T) <-chan T {
	out := make(chan T)
	done := make(chan struct{})
	for _, in := range ins {
		go func(in <-chan T) {
			for item := range in {
				out <- item
			}
			done <- struct{}{}
		}(in)
	}
	go func() {
		for range ins {
			<-done
		}
		close(out)
	}()
	return out
}

// A Pair is one element of a cross join.
type Pair[A, B any] struct {
	A A
	B B
}

// Cross emits the full cross product of as and bs: every item of as paired
// with every item of bs. bs is buffered exactly once; as is streamed. Both
// inputs are consumed in full even if one is empty, so upstream producers
// never block on a degenerate join.
func Cross[A, B any](as <-chan A, bs <-chan B) <-chan Pair[A, B] {
	out := make(chan Pair[A, B])
	go func() {
		defer close(out)
		all := Collect(bs)
		for a := range as {
			for _, b := range all {
				out <- Pair[A, B]{A: a, B: b}
			}
		}
	}()
	return out
}
