package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credrelay/pkg/platform/audit"
	"credrelay/pkg/platform/audit/store/memory"
)

func TestPublisherSyncMode(t *testing.T) {
	store := memory.NewStore()
	pub := NewPublisher(store)
	defer pub.Close()

	event := audit.Event{
		Action:  audit.ActionCredentialIssued,
		Subject: "0xabc",
	}
	require.NoError(t, pub.Emit(context.Background(), event))

	events, err := pub.List(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionCredentialIssued, events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp stamped on emit")
}

func TestPublisherAsyncMode(t *testing.T) {
	store := memory.NewStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	event := audit.Event{
		Action:  audit.ActionRequestApproved,
		Subject: "req-1",
	}
	require.NoError(t, pub.Emit(context.Background(), event))

	// Close drains the buffer before returning.
	pub.Close()

	events, err := pub.List(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionRequestApproved, events[0].Action)
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingSink) Publish(_ context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func TestPublisherFansOutToSinks(t *testing.T) {
	store := memory.NewStore()
	sink := &recordingSink{}
	pub := NewPublisher(store, WithSink(sink))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Timestamp: time.Now().UTC(),
		Action:    audit.ActionVerificationPassed,
		Subject:   "req-9",
	}))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	assert.Equal(t, audit.ActionVerificationPassed, sink.events[0].Action)
}
