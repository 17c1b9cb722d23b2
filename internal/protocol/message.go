// Package protocol speaks the renderer's wire format: one ASCII tracking
// message per frame over UDP, and a TCP command channel coming back.
//
// The renderer parses bey entries with \((\d+), (\d+), (\d+)\) and hit
// entries with \((\d+), (\d+)\). The encoding here must never drift from
// that grammar.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beysion/beytracker/internal/track"
)

// Bey is one tracked object as it appears on the wire.
type Bey struct {
	ID   int64
	X, Y int
}

// Point is one collision position as it appears on the wire.
type Point struct {
	X, Y int
}

// Message is the per-frame payload. Value type, fully determined by the
// frame's tracking output, regenerated every cycle.
type Message struct {
	FrameIndex int64
	Beys       []Bey
	Hits       []Point
}

// FromTracking builds the frame's Message from the registry output,
// preserving detection order.
func FromTracking(frameIndex int64, entities []track.Entity, hits []track.HitEvent) Message {
	m := Message{FrameIndex: frameIndex}
	for _, e := range entities {
		m.Beys = append(m.Beys, Bey{ID: e.ID, X: e.X, Y: e.Y})
	}
	for _, h := range hits {
		m.Hits = append(m.Hits, Point{X: h.X, Y: h.Y})
	}
	return m
}

// Encode renders the message in the exact wire grammar:
//
//	<frame>, beys:(<id>, <x>, <y>)..., hits:(<x>, <y>)...
//
// Both labels are always present; either list may be empty.
func (m Message) Encode() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(m.FrameIndex, 10))
	b.WriteString(", beys:")
	for _, bey := range m.Beys {
		fmt.Fprintf(&b, "(%d, %d, %d)", bey.ID, bey.X, bey.Y)
	}
	b.WriteString(", hits:")
	for _, h := range m.Hits {
		fmt.Fprintf(&b, "(%d, %d)", h.X, h.Y)
	}
	return b.String()
}
