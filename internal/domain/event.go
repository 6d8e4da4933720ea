package domain

import (
	"fmt"
	"sync/atomic"
	"time"
)

type InputType string

const (
	InputTypeURL  InputType = "url"
	InputTypeFile InputType = "file"
)

type EventStatus string

const (
	// EventStatusLoading exists only as a client-side optimistic placeholder
	// status. The server never broadcasts it.
	EventStatusLoading EventStatus = "loading"
	EventStatusSuccess EventStatus = "success"
	EventStatusError   EventStatus = "error"
)

// Source is a grounding citation attached to a summary.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// ResultEvent is the immutable, broadcast-worthy outcome of a job. Updates
// are modeled as new events that consumers correlate and merge, never as
// in-place mutation of an already published event.
type ResultEvent struct {
	ID            string      `json:"id"`
	CorrelationID string      `json:"correlationId,omitempty"`
	SourceLabel   string      `json:"sourceLabel"`
	InputType     InputType   `json:"inputType"`
	URL           string      `json:"url,omitempty"`
	FileName      string      `json:"fileName,omitempty"`
	Status        EventStatus `json:"status"`
	Summary       string      `json:"summary"`
	Sources       []Source    `json:"sources"`
	Timestamp     int64       `json:"timestamp"`
}

// JobRequest describes a single summarization or file-analysis request. It
// lives only for the duration of the asynchronous executor call.
type JobRequest struct {
	InputType     InputType
	URL           string
	FileData      []byte
	MimeType      string
	FileName      string
	Prompt        string
	Model         string
	CorrelationID string
	SourceLabel   string
}

// WebhookConfig names a registered webhook endpoint. It is consumed
// read-only by ingress to resolve the display label for an event.
type WebhookConfig struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AIModel   string    `json:"aiModel"`
	CreatedAt time.Time `json:"createdAt"`
}

var eventSequence atomic.Uint64

// NewEventID returns a server-generated event id that increases
// monotonically with creation time. The atomic sequence component keeps ids
// ordered even when two events are created within the same millisecond.
func NewEventID() string {
	return fmt.Sprintf("evt_%013d_%08d", time.Now().UnixMilli(), eventSequence.Add(1))
}
