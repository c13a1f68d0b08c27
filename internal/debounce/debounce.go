// Package debounce merges rapid messages from one sender into a single
// logical turn. People type in bursts; answering each fragment separately
// wastes completion calls and produces disjointed replies.
package debounce

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DrainFunc receives one joined turn for a sender. It is called from the
// sender's drain goroutine; at most one call per sender is in flight.
type DrainFunc func(ctx context.Context, senderKey, turn string)

type bucket struct {
	pending  []string
	draining bool
}

// Buffer holds per-sender pending messages. All bucket state is guarded by
// one mutex so the "drain already running" check and the list mutation are
// atomic; races here would duplicate or drop messages.
type Buffer struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	quiet time.Duration
	drain DrainFunc
	log   *zap.Logger
	wg    sync.WaitGroup
}

func NewBuffer(quiet time.Duration, drain DrainFunc, log *zap.Logger) *Buffer {
	if quiet <= 0 {
		quiet = 2 * time.Second
	}
	return &Buffer{
		buckets: make(map[string]*bucket),
		quiet:   quiet,
		drain:   drain,
		log:     log,
	}
}

// Accept appends a message to the sender's pending list and starts a drain
// cycle if none is active. A crash loses only the current quiet period; the
// upstream channel redelivers.
func (b *Buffer) Accept(senderKey, text string) {
	b.mu.Lock()
	bkt, ok := b.buckets[senderKey]
	if !ok {
		bkt = &bucket{}
		b.buckets[senderKey] = bkt
	}
	bkt.pending = append(bkt.pending, text)
	start := !bkt.draining
	if start {
		bkt.draining = true
		b.wg.Add(1)
	}
	b.mu.Unlock()

	if start {
		go b.drainLoop(senderKey, bkt)
	}
}

// drainLoop waits out the quiet period, swaps the pending list, and hands the
// joined turn downstream. It keeps cycling while new messages arrive mid-drain
// and removes the bucket once a cycle finds it empty.
func (b *Buffer) drainLoop(senderKey string, bkt *bucket) {
	defer b.wg.Done()

	for {
		time.Sleep(b.quiet)

		b.mu.Lock()
		msgs := bkt.pending
		bkt.pending = nil
		if len(msgs) == 0 {
			bkt.draining = false
			delete(b.buckets, senderKey)
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		b.process(senderKey, strings.Join(msgs, "\n"))
	}
}

// process shields the drain loop from downstream failures: a panicking or
// slow handler must not leave the bucket stuck in draining state.
func (b *Buffer) process(senderKey, turn string) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("debounce: drain handler panicked",
				zap.String("sender", senderKey),
				zap.Any("panic", r))
		}
	}()
	b.drain(context.Background(), senderKey, turn)
}

// Pending reports whether the sender currently has a bucket. Test hook for
// teardown-on-empty behavior.
func (b *Buffer) Pending(senderKey string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.buckets[senderKey]
	return ok
}

// Close waits for all in-flight drain cycles to finish.
func (b *Buffer) Close() {
	b.wg.Wait()
}
