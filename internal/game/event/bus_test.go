package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambonmud/server/internal/game/id"
)

func TestInboundBus_PublishReceive(t *testing.T) {
	b := NewInboundBus(4)
	require.NoError(t, b.Publish(LineReceived{SessionID: 1, Text: "look"}, 0))
	require.NoError(t, b.Publish(Connected{SessionID: 2, Transport: TransportTelnet}, 0))
	assert.Equal(t, 2, b.Len())

	ev := <-b.Receive()
	line, ok := ev.(LineReceived)
	require.True(t, ok)
	assert.Equal(t, id.SessionID(1), line.Session())
	assert.Equal(t, "look", line.Text)
}

func TestInboundBus_FullWithoutTimeout(t *testing.T) {
	b := NewInboundBus(1)
	require.NoError(t, b.Publish(SendPromptPlaceholder(), 0))
	err := b.Publish(SendPromptPlaceholder(), 0)
	assert.ErrorIs(t, err, ErrBusFull)
}

// SendPromptPlaceholder builds a trivial inbound event for queue tests.
func SendPromptPlaceholder() InboundEvent {
	return LineReceived{SessionID: 9, Text: "x"}
}

func TestInboundBus_FullWithTimeout(t *testing.T) {
	b := NewInboundBus(1)
	require.NoError(t, b.Publish(SendPromptPlaceholder(), 0))

	start := time.Now()
	err := b.Publish(SendPromptPlaceholder(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrBusFull)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestInboundBus_TimeoutSucceedsWhenDrained(t *testing.T) {
	b := NewInboundBus(1)
	require.NoError(t, b.Publish(SendPromptPlaceholder(), 0))

	go func() {
		time.Sleep(5 * time.Millisecond)
		<-b.Receive()
	}()
	err := b.Publish(SendPromptPlaceholder(), 500*time.Millisecond)
	assert.NoError(t, err)
}

func TestInboundBus_Closed(t *testing.T) {
	b := NewInboundBus(1)
	b.Close()
	b.Close() // idempotent
	assert.ErrorIs(t, b.Publish(SendPromptPlaceholder(), 0), ErrBusClosed)
}

func TestOutboundBus_FIFO(t *testing.T) {
	b := NewOutboundBus(8)
	b.Publish(SendText{SessionID: 1, Text: "a"})
	b.Publish(SendInfo{SessionID: 1, Text: "b"})
	b.Publish(SendPrompt{SessionID: 1})

	assert.Equal(t, "a", (<-b.Receive()).(SendText).Text)
	assert.Equal(t, "b", (<-b.Receive()).(SendInfo).Text)
	_, ok := (<-b.Receive()).(SendPrompt)
	assert.True(t, ok)
}
