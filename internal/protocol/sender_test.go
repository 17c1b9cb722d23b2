package protocol

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderDelivers(t *testing.T) {
	receiver, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer receiver.Close()

	sender, err := NewSender(receiver.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender.Start(ctx)

	sender.Send("17, beys:(1, 10, 20), hits:")

	buf := make([]byte, 2048)
	require.NoError(t, receiver.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := receiver.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "17, beys:(1, 10, 20), hits:", string(buf[:n]))
}

func TestSenderNeverBlocks(t *testing.T) {
	receiver, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer receiver.Close()

	sender, err := NewSender(receiver.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	// Writer goroutine intentionally not started: the queue fills, and Send
	// must still return immediately every time.
	done := make(chan struct{})
	go func() {
		for i := 0; i < senderQueueDepth*4; i++ {
			sender.Send("0, beys:, hits:")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked with a full queue")
	}

	assert.Positive(t, sender.Dropped(), "overflow must be counted as drops")
}

func TestSenderBadAddress(t *testing.T) {
	_, err := NewSender("this is not an address")
	assert.Error(t, err)
}
