package search

import (
	"sync"

	"github.com/poiesic/lexis/core"
)

// EventType names a progress event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventSearching EventType = "searching"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Pipeline stage names reported in searching events.
const (
	StageNameExact          = "exact"
	StageNameVector         = "vector"
	StageNameRelationship   = "relationship"
	StageNameGraphExpansion = "graph_expansion"
	StageNameRerank         = "rerank"
	StageNameCollaboration  = "collaboration"
)

// stageCount is the number of pipeline stages an agent reports.
const stageCount = 5

// Event is one step of a search's progress. Which fields are set depends on Type.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Query     string    `json:"query,omitempty"`

	// searching
	Stage     int           `json:"stage,omitempty"`
	StageName string        `json:"stage_name,omitempty"`
	Progress  float64       `json:"progress,omitempty"`
	Agent     string        `json:"agent,omitempty"`
	DomainID  core.DomainID `json:"domain_id,omitempty"`

	// complete
	Results        []core.SearchResult `json:"results,omitempty"`
	ResultCount    int                 `json:"result_count,omitempty"`
	ResponseTimeMS int64               `json:"response_time_ms,omitempty"`
	DomainName     string              `json:"domain_name,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// Sink receives progress events in the order they happen. Emit must not block
// for long; the search waits for it.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(e Event) { f(e) }

// noopSink drops every event.
type noopSink struct{}

var _ Sink = noopSink{}

func (noopSink) Emit(Event) {}

// Recorder is a Sink that keeps every event. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
