package protocol

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"
)

const senderQueueDepth = 256

// Sender transmits wire messages over connectionless UDP. Send never blocks:
// messages queue to a writer goroutine and are dropped, counted, when the
// queue is full. A send failure is logged at interval and never propagates
// into the detection cycle.
type Sender struct {
	conn        *net.UDPConn
	queue       chan string
	logInterval time.Duration
	address     string

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewSender resolves addr and opens the UDP socket.
func NewSender(addr string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Sender{
		conn:        conn,
		queue:       make(chan string, senderQueueDepth),
		logInterval: 5 * time.Second,
		address:     addr,
	}, nil
}

// Start launches the writer goroutine. Write errors are coalesced and logged
// once per interval; the next send simply tries again.
func (s *Sender) Start(ctx context.Context) {
	go func() {
		failed := 0
		var lastErr error
		ticker := time.NewTicker(s.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-s.queue:
				if !ok {
					return
				}
				if _, err := s.conn.Write([]byte(msg)); err != nil {
					failed++
					lastErr = err
				} else {
					s.sent.Add(1)
				}
			case <-ticker.C:
				if failed > 0 && lastErr != nil {
					log.Printf("protocol: %d sends to %s failed (latest: %v)", failed, s.address, lastErr)
					failed = 0
					lastErr = nil
				}
			}
		}
	}()
}

// Send queues one message without blocking. A full queue drops the message;
// fresher frames are always more valuable than stale ones.
func (s *Sender) Send(msg string) {
	select {
	case s.queue <- msg:
	default:
		s.dropped.Add(1)
	}
}

// Sent reports messages written to the socket so far.
func (s *Sender) Sent() int64 { return s.sent.Load() }

// Dropped reports messages discarded because the queue was full.
func (s *Sender) Dropped() int64 { return s.dropped.Load() }

// Close releases the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
