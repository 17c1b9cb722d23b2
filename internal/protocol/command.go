package protocol

import (
	"context"
	"errors"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ConnState tracks the inbound command peer.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives decoded commands. RequestCalibration must only flag the
// request; the pipeline recalibrates at its next cycle boundary.
type Handler interface {
	RequestCalibration()
	// StepThreshold adjusts the detection threshold by direction (+1/-1)
	// steps and returns the new value.
	StepThreshold(direction int) float64
}

// Command vocabulary and replies. Anything else is ignored without a reply.
const (
	cmdCalibrate     = "calibrate"
	cmdThresholdUp   = "threshold_up"
	cmdThresholdDown = "threshold_down"
	replyCalibrated  = "calibrated"
)

const (
	acceptBackoffMin = 500 * time.Millisecond
	acceptBackoffMax = 5 * time.Second
)

// CommandServer listens on TCP for the renderer's command channel. At most
// one peer is served at a time; when it disconnects the server returns to
// accepting. Accept failures retry with backoff. State transitions are
// reported through notify for the GUI collaborator.
type CommandServer struct {
	addr    string
	handler Handler
	notify  func(ConnState)

	mu       sync.Mutex
	listener net.Listener
	state    ConnState
}

// NewCommandServer creates a server; notify may be nil.
func NewCommandServer(addr string, handler Handler, notify func(ConnState)) *CommandServer {
	return &CommandServer{
		addr:    addr,
		handler: handler,
		notify:  notify,
		state:   Disconnected,
	}
}

// Start binds the listener and launches the accept loop. It returns once the
// listener is bound, so a caller can connect immediately after.
func (c *CommandServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", c.addr)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.listener = listener
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	go c.acceptLoop(ctx, listener)

	return nil
}

// Addr returns the bound listen address, useful with ":0".
func (c *CommandServer) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

// State returns the current connection state.
func (c *CommandServer) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *CommandServer) setState(s ConnState) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.notify != nil {
		c.notify(s)
	}
}

func (c *CommandServer) acceptLoop(ctx context.Context, listener net.Listener) {
	backoff := acceptBackoffMin
	for {
		c.setState(Connecting)

		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				c.setState(Disconnected)
				return
			}
			log.Printf("protocol: accept on %s failed: %v (retrying in %v)", c.addr, err, backoff)
			select {
			case <-ctx.Done():
				c.setState(Disconnected)
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, acceptBackoffMax)
			continue
		}
		backoff = acceptBackoffMin

		c.setState(Connected)
		c.serve(ctx, conn)
	}
}

// serve reads commands from the single active peer until it goes away.
func (c *CommandServer) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("protocol: command peer disconnected: %v", err)
			}
			return
		}

		if reply, ok := c.dispatch(strings.TrimSpace(string(buf[:n]))); ok {
			if _, err := conn.Write([]byte(reply)); err != nil {
				log.Printf("protocol: command reply failed: %v", err)
				return
			}
		}
	}
}

// dispatch runs one command. Unrecognized text yields no reply at all.
func (c *CommandServer) dispatch(command string) (string, bool) {
	switch command {
	case cmdCalibrate:
		c.handler.RequestCalibration()
		return replyCalibrated, true
	case cmdThresholdUp:
		v := c.handler.StepThreshold(+1)
		return "threshold:" + strconv.FormatFloat(v, 'f', -1, 64), true
	case cmdThresholdDown:
		v := c.handler.StepThreshold(-1)
		return "threshold:" + strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
