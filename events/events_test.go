package events

import (
	"context"
	"errors"
	"testing"
)

func TestFanoutPublishesToAll(t *testing.T) {
	var got []string
	record := func(name string, err error) Sink {
		return SinkFunc(func(_ context.Context, e Event) error {
			got = append(got, name+":"+e.RunID)
			return err
		})
	}
	boom := errors.New("broker down")
	f := Fanout{record("hub", nil), nil, record("kafka", boom), record("log", nil)}

	err := f.Publish(context.Background(), Event{Type: RunStarted, RunID: "r1"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want broker error", err)
	}
	if len(got) != 3 || got[0] != "hub:r1" || got[2] != "log:r1" {
		t.Fatalf("published = %v", got)
	}
}

func TestDiscard(t *testing.T) {
	if err := Discard.Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("discard: %v", err)
	}
}
