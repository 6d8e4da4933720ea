package broadcast

import (
	"fmt"
	"testing"

	"github.com/iago/ai-webhook-back/internal/domain"
)

func makeEvent(index int) domain.ResultEvent {
	return domain.ResultEvent{
		ID:          fmt.Sprintf("evt_%04d", index),
		SourceLabel: "Test Webhook",
		InputType:   domain.InputTypeURL,
		URL:         fmt.Sprintf("https://example.com/%d", index),
		Status:      domain.EventStatusSuccess,
		Summary:     fmt.Sprintf("summary %d", index),
		Sources:     []domain.Source{},
		Timestamp:   int64(1700000000000 + index),
	}
}

func drain(subscriber *Subscriber, count int) []domain.ResultEvent {
	events := make([]domain.ResultEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, <-subscriber.C)
	}
	return events
}

func TestHistoryCapKeepsMostRecentTwenty(t *testing.T) {
	broadcaster := New(Config{})
	for i := 1; i <= 25; i++ {
		broadcaster.Publish(makeEvent(i))
	}

	subscriber := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(subscriber)

	replayed := drain(subscriber, DefaultHistoryCap)
	if len(subscriber.C) != 0 {
		t.Fatalf("expected exactly %d replayed events, found more buffered", DefaultHistoryCap)
	}
	for i, event := range replayed {
		want := fmt.Sprintf("evt_%04d", i+6)
		if event.ID != want {
			t.Fatalf("replay position %d: expected %s, got %s", i, want, event.ID)
		}
	}
}

func TestPublishPreservesOrderForLiveSubscriber(t *testing.T) {
	broadcaster := New(Config{})
	subscriber := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(subscriber)

	for i := 1; i <= 10; i++ {
		broadcaster.Publish(makeEvent(i))
	}

	received := drain(subscriber, 10)
	for i, event := range received {
		want := fmt.Sprintf("evt_%04d", i+1)
		if event.ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, event.ID)
		}
	}
}

func TestReplayThenLiveHasNoGapOrDuplicate(t *testing.T) {
	broadcaster := New(Config{})
	broadcaster.Publish(makeEvent(1))
	broadcaster.Publish(makeEvent(2))

	subscriber := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(subscriber)

	broadcaster.Publish(makeEvent(3))

	received := drain(subscriber, 3)
	for i, event := range received {
		want := fmt.Sprintf("evt_%04d", i+1)
		if event.ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, event.ID)
		}
	}
	if len(subscriber.C) != 0 {
		t.Fatalf("expected no extra events, %d buffered", len(subscriber.C))
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	broadcaster := New(Config{})
	subscriber := broadcaster.Subscribe()

	broadcaster.Unsubscribe(subscriber)
	broadcaster.Unsubscribe(subscriber)
	broadcaster.Unsubscribe(nil)

	if count := broadcaster.SubscriberCount(); count != 0 {
		t.Fatalf("expected 0 subscribers, got %d", count)
	}
}

func TestUnresponsiveSubscriberDoesNotBlockOthers(t *testing.T) {
	broadcaster := New(Config{HistoryCap: 4, SubscriberBuffer: 1})

	stuck := broadcaster.Subscribe()
	healthy := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(healthy)

	// Fill the stuck subscriber's buffer while the healthy one keeps up.
	received := make([]domain.ResultEvent, 0, 6)
	for i := 1; i <= 6; i++ {
		broadcaster.Publish(makeEvent(i))
		received = append(received, <-healthy.C)
	}

	if received[5].ID != "evt_0006" {
		t.Fatalf("healthy subscriber missed events, last=%s", received[5].ID)
	}

	if count := broadcaster.SubscriberCount(); count != 1 {
		t.Fatalf("expected stuck subscriber to be dropped, have %d subscribers", count)
	}

	// The dropped subscriber's channel is closed after its buffered events.
	for range stuck.C {
	}
}

func TestHistoryReturnsCopyInPublishOrder(t *testing.T) {
	broadcaster := New(Config{HistoryCap: 3})
	broadcaster.Publish(makeEvent(1))
	broadcaster.Publish(makeEvent(2))

	history := broadcaster.History()
	if len(history) != 2 || history[0].ID != "evt_0001" || history[1].ID != "evt_0002" {
		t.Fatalf("unexpected history: %+v", history)
	}

	history[0].ID = "mutated"
	if broadcaster.History()[0].ID != "evt_0001" {
		t.Fatalf("History must return a copy")
	}
}
