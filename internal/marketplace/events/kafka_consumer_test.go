package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeReader serves queued messages, then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func TestConsumerHandlesAndCommits(t *testing.T) {
	core, recorded := observer.New(zap.ErrorLevel)
	good := Event{Type: JobUpdated, Kind: KindJob, ID: uuid.New()}
	failing := Event{Type: JobUpdated, Kind: KindJob, ID: uuid.New()}
	reader := &fakeReader{queue: []kafka.Message{
		{Value: mustMarshal(good)},
		{Value: []byte("not json")},
		{Value: mustMarshal(failing)},
	}}
	c := &Consumer{reader: reader, logger: zap.New(core)}

	var mu sync.Mutex
	var handled []uuid.UUID
	c.RegisterHandler(func(_ context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, ev.ID)
		if ev.ID == failing.ID {
			return errors.New("store down")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	require.Eventually(t, func() bool {
		return recorded.FilterMessage("Failed to handle event").Len() == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	mu.Lock()
	assert.Equal(t, []uuid.UUID{good.ID, failing.ID}, handled)
	mu.Unlock()

	assert.Equal(t, 2, reader.commits(), "parsed and unparsable messages are committed, failed ones are not")
	assert.Equal(t, 1, recorded.FilterMessage("Failed to parse event").Len())

	var decoded Event
	require.NoError(t, json.Unmarshal(mustMarshal(good), &decoded))
	assert.Equal(t, good.ID, decoded.ID)
}
