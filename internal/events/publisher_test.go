package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventEnvelope(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	body, err := json.Marshal(Event{
		Type:       BorrowCreated,
		OccurredAt: at,
		Payload:    map[string]string{"book_id": "b1"},
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "library.borrow.created", decoded["event_type"])
	assert.Equal(t, "2024-03-01T10:00:00Z", decoded["occurred_at"])
	assert.Equal(t, map[string]any{"book_id": "b1"}, decoded["payload"])
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: BorrowReturned}))
	assert.NoError(t, p.Close())
}

func TestAMQPPublisher(t *testing.T) {
	url := os.Getenv("TEST_RABBITMQ_URL")
	if url == "" {
		t.Skip("TEST_RABBITMQ_URL not set")
	}

	p, err := NewAMQPPublisher(url, "libraryops-test", zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, p.IsHealthy())
	err = p.Publish(context.Background(), Event{Type: BorrowCreated, OccurredAt: time.Now()})
	assert.NoError(t, err)
}
