package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordtally/apiserver/internal/mq"
)

type recordedIncrement struct {
	username string
	word     string
	delta    int
}

type fakeIncrementer struct {
	calls []recordedIncrement
	err   error
}

func (f *fakeIncrementer) Increment(ctx context.Context, username, word string, delta int) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, recordedIncrement{username: username, word: word, delta: delta})
	return nil
}

func newTestWorker(counter Incrementer) *Worker {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewWorker(nil, "count-events", counter, logger)
}

func TestHandleAppliesEvent(t *testing.T) {
	counter := &fakeIncrementer{}
	worker := newTestWorker(counter)

	err := worker.Handle(context.Background(), mq.Message{
		ID:   "m1",
		Data: []byte(`{"username":"diablo","word":"hello","count":3}`),
	})
	require.NoError(t, err)
	require.Len(t, counter.calls, 1)
	assert.Equal(t, recordedIncrement{username: "diablo", word: "hello", delta: 3}, counter.calls[0])
}

func TestHandleDefaultsCountToOne(t *testing.T) {
	counter := &fakeIncrementer{}
	worker := newTestWorker(counter)

	err := worker.Handle(context.Background(), mq.Message{
		Data: []byte(`{"username":"diablo","word":"hello"}`),
	})
	require.NoError(t, err)
	require.Len(t, counter.calls, 1)
	assert.Equal(t, 1, counter.calls[0].delta)
}

func TestHandleDropsMalformedEvent(t *testing.T) {
	counter := &fakeIncrementer{}
	worker := newTestWorker(counter)

	err := worker.Handle(context.Background(), mq.Message{Data: []byte("not json")})
	require.NoError(t, err)
	assert.Empty(t, counter.calls)
}

func TestHandleDropsInvalidEvent(t *testing.T) {
	counter := &fakeIncrementer{}
	worker := newTestWorker(counter)

	for _, raw := range []string{
		`{"word":"hello"}`,
		`{"username":"diablo"}`,
	} {
		err := worker.Handle(context.Background(), mq.Message{Data: []byte(raw)})
		require.NoError(t, err)
	}
	assert.Empty(t, counter.calls)
}

func TestHandleReturnsStoreError(t *testing.T) {
	counter := &fakeIncrementer{err: errors.New("connection reset")}
	worker := newTestWorker(counter)

	err := worker.Handle(context.Background(), mq.Message{
		Data: []byte(`{"username":"diablo","word":"hello"}`),
	})
	assert.Error(t, err)
}
