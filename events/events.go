// Package events describes run lifecycle notifications and fans them out
// to sinks such as the SSE hub and the Kafka publisher.
package events

import (
	"context"
	"errors"
	"time"
)

// Type names an event.
type Type string

const (
	RunStarted     Type = "run.started"
	RunFinished    Type = "run.finished"
	TaskTransition Type = "task.transition"
)

// Event is one lifecycle notification. Task fields are empty for run events.
type Event struct {
	Type        Type      `json:"type"`
	RunID       string    `json:"run_id"`
	DAGID       string    `json:"dag_id"`
	LogicalDate string    `json:"logical_date"`
	Task        string    `json:"task,omitempty"`
	Attempt     int       `json:"attempt,omitempty"`
	Status      string    `json:"status"`
	ErrorCode   string    `json:"error_code,omitempty"`
	Message     string    `json:"message,omitempty"`
	At          time.Time `json:"at"`
}

// Key orders events of one run on partitioned transports.
func (e Event) Key() string { return e.RunID }

// Sink receives events. Publish must not block on slow consumers.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })
