// Package ingest consumes count events from the message bus and folds
// them into the counts table.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/wordtally/apiserver/internal/mq"
)

// CountEvent is one observation of a word used by a user. Count
// defaults to 1 when absent.
type CountEvent struct {
	Username string `json:"username"`
	Word     string `json:"word"`
	Count    int    `json:"count"`
}

// Incrementer records additional word uses.
type Incrementer interface {
	Increment(ctx context.Context, username, word string, delta int) error
}

// Worker subscribes to the count-event channel and applies each event
// to the store.
type Worker struct {
	bus     mq.Backend
	channel string
	counter Incrementer
	logger  *logrus.Logger
}

// NewWorker constructs a Worker.
func NewWorker(bus mq.Backend, channel string, counter Incrementer, logger *logrus.Logger) *Worker {
	return &Worker{
		bus:     bus,
		channel: channel,
		counter: counter,
		logger:  logger,
	}
}

// Run consumes events until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.WithField("channel", w.channel).Info("ingest worker started")
	return w.bus.Subscribe(ctx, w.channel, w.Handle)
}

// Handle applies a single count event. A malformed or invalid event is
// dropped (acked) with a warning; a store failure is returned so the
// broker redelivers.
func (w *Worker) Handle(ctx context.Context, msg mq.Message) error {
	var event CountEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		w.logger.WithField("message_id", msg.ID).Warn("dropping malformed count event")
		return nil
	}
	if err := event.validate(); err != nil {
		w.logger.WithField("message_id", msg.ID).WithError(err).Warn("dropping invalid count event")
		return nil
	}

	delta := event.Count
	if delta < 1 {
		delta = 1
	}

	if err := w.counter.Increment(ctx, event.Username, event.Word, delta); err != nil {
		return fmt.Errorf("ingest: increment failed: %w", err)
	}
	return nil
}

func (e CountEvent) validate() error {
	if e.Username == "" {
		return fmt.Errorf("missing username")
	}
	if e.Word == "" {
		return fmt.Errorf("missing word")
	}
	if len(e.Word) > 2000 {
		return fmt.Errorf("word too long")
	}
	return nil
}
