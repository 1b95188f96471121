package server

import (
	"context"
	"testing"
	"time"
)

func TestRealtimeDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "season-1")
	defer cleanup()

	message := RealtimeMessage{
		SeasonID:      "season-1",
		EventType:     RealtimeEventBoostChanged,
		SubmissionID:  "sub-a",
		DisplayBoosts: 4,
		Timestamp:     time.Now().UTC(),
	}
	dispatcher.Publish(message)

	select {
	case received := <-stream:
		if received.EventType != RealtimeEventBoostChanged {
			t.Fatalf("expected event type %s, got %s", RealtimeEventBoostChanged, received.EventType)
		}
		if received.SubmissionID != "sub-a" || received.DisplayBoosts != 4 {
			t.Fatalf("unexpected message %+v", received)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected realtime message within deadline")
	}
}

func TestRealtimeDispatcherIsolatedBySeason(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otherCtx, otherCancel := context.WithCancel(context.Background())
	defer otherCancel()

	quietStream, cleanup := dispatcher.Subscribe(ctx, "season-2")
	defer cleanup()

	busyStream, busyCleanup := dispatcher.Subscribe(otherCtx, "season-3")
	defer busyCleanup()

	dispatcher.Publish(RealtimeMessage{
		SeasonID:     "season-3",
		EventType:    RealtimeEventBoostChanged,
		SubmissionID: "sub-c",
		Timestamp:    time.Now().UTC(),
	})

	select {
	case <-quietStream:
		t.Fatal("did not expect realtime message for unrelated season")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case msg := <-busyStream:
		if msg.SeasonID != "season-3" {
			t.Fatalf("expected season-3, received %s", msg.SeasonID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected realtime message for subscribed season")
	}
}

func TestRealtimeDispatcherUnsubscribeOnContextCancel(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	_, _ = dispatcher.Subscribe(ctx, "season-4")
	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		dispatcher.mu.RLock()
		remaining := len(dispatcher.subscribers["season-4"])
		dispatcher.mu.RUnlock()
		if remaining == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected subscriber to be removed after context cancellation")
}
