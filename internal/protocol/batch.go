package protocol

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// maxBatchBytes keeps a coalesced transmission under a safe datagram size.
// A batch that would exceed it is sent message by message instead.
const maxBatchBytes = 60000

// Transmitter is the outbound path a Batcher wraps.
type Transmitter interface {
	Send(msg string)
}

// Batcher coalesces consecutive wire messages into one transmission to cut
// per-datagram overhead. A batch flushes when it reaches maxCount messages or
// when its oldest message ages past maxAge, whichever happens first. Messages
// are joined with '\n' in arrival order; content and ordering are never
// altered, so batching is invisible to the consumer's line-oriented parsing.
type Batcher struct {
	out      Transmitter
	clock    clock.Clock
	maxCount int
	maxAge   time.Duration
	onFlush  func(batched int)

	mu      sync.Mutex
	pending []string
	size    int
	timer   *clock.Timer
}

// NewBatcher wraps out. onFlush, if non-nil, observes each flush's batch
// size. The clock is injectable for tests.
func NewBatcher(out Transmitter, clk clock.Clock, maxCount int, maxAge time.Duration, onFlush func(batched int)) *Batcher {
	if clk == nil {
		clk = clock.New()
	}
	if maxCount < 1 {
		maxCount = 1
	}
	return &Batcher{
		out:      out,
		clock:    clk,
		maxCount: maxCount,
		maxAge:   maxAge,
		onFlush:  onFlush,
	}
}

// Send queues one message. Never blocks beyond the internal bookkeeping.
func (b *Batcher) Send(msg string) {
	b.mu.Lock()

	b.pending = append(b.pending, msg)
	b.size += len(msg) + 1

	if len(b.pending) >= b.maxCount {
		b.flushLocked()
		b.mu.Unlock()
		return
	}

	// First message of a fresh batch arms the age timer.
	if len(b.pending) == 1 {
		b.timer = b.clock.AfterFunc(b.maxAge, b.Flush)
	}
	b.mu.Unlock()
}

// Flush transmits whatever is pending, if anything.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		return
	}

	count := len(b.pending)
	if b.size > maxBatchBytes {
		// Assembly would overflow a datagram: fall back to per-message
		// sends, preserving order.
		for _, msg := range b.pending {
			b.out.Send(msg)
		}
	} else {
		b.out.Send(strings.Join(b.pending, "\n"))
	}

	b.pending = b.pending[:0]
	b.size = 0
	if b.onFlush != nil {
		b.onFlush(count)
	}
}
