// Package reconcile merges broadcast events into a local result list the
// way the dashboard does: optimistic placeholders inserted at submission
// time are resolved by correlation id when the authoritative server event
// arrives, and externally triggered events are inserted as new entries.
package reconcile

import (
	"sort"

	"github.com/iago/ai-webhook-back/internal/domain"
)

// Key returns the resolution key for an event: the caller-supplied
// correlation id when present, otherwise the server id.
func Key(event domain.ResultEvent) string {
	if event.CorrelationID != "" {
		return event.CorrelationID
	}
	return event.ID
}

// Merge applies one incoming event to the current list and returns the new
// list, sorted by timestamp descending. The input list is not mutated.
//
// A matching entry (its id equals the event's resolution key, or it carries
// the same correlation id) is replaced: status, summary and sources are
// taken from the event and the entry's id solidifies to the server id.
// Without a match the event is inserted as a new entry. Consumers that see
// a replayed event they already merged end up with the same list, so
// reconnect-and-replay is safe.
func Merge(event domain.ResultEvent, current []domain.ResultEvent) []domain.ResultEvent {
	key := Key(event)

	next := make([]domain.ResultEvent, 0, len(current)+1)
	matched := false
	for _, entry := range current {
		if !matched && matches(entry, key) {
			entry.ID = event.ID
			entry.Status = event.Status
			entry.Summary = event.Summary
			entry.Sources = append([]domain.Source(nil), event.Sources...)
			entry.Timestamp = event.Timestamp
			matched = true
		}
		next = append(next, entry)
	}
	if !matched {
		next = append(next, event)
	}

	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Timestamp > next[j].Timestamp
	})
	return next
}

// Remove drops an entry from the local list. Deletion is purely local UI
// state: server history is untouched, so a late-joining client may see the
// event again via replay.
func Remove(id string, current []domain.ResultEvent) []domain.ResultEvent {
	next := make([]domain.ResultEvent, 0, len(current))
	for _, entry := range current {
		if entry.ID == id {
			continue
		}
		next = append(next, entry)
	}
	return next
}

func matches(entry domain.ResultEvent, key string) bool {
	if entry.ID == key {
		return true
	}
	return entry.CorrelationID != "" && entry.CorrelationID == key
}
