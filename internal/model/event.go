package model

import (
	"time"
)

// EventType represents the type of a streamed exchange event.
type EventType string

const (
	EventTypeThinking      EventType = "thinking"
	EventTypeThreadCreated EventType = "thread_created"
	EventTypeFinal         EventType = "final"
	EventTypeError         EventType = "error"
)

// Terminal reports whether the event type ends an exchange stream.
func (t EventType) Terminal() bool {
	return t == EventTypeFinal || t == EventTypeError
}

// Event is one record of the exchange stream.
type Event struct {
	Type     EventType `json:"type"`
	Content  any       `json:"content"`
	ThreadID string    `json:"thread_id,omitempty"`
}

// FinalAnswer is the content of a final event.
type FinalAnswer struct {
	Format string `json:"format"`
	Text   string `json:"text"`
}

// Thinking builds a progress event.
func Thinking(text string) Event {
	return Event{Type: EventTypeThinking, Content: text}
}

// ThreadCreated builds the event announcing a new continuation token.
func ThreadCreated(threadID string) Event {
	return Event{Type: EventTypeThreadCreated, Content: "", ThreadID: threadID}
}

// Final builds the terminal answer event.
func Final(threadID, markdown string) Event {
	return Event{
		Type:     EventTypeFinal,
		Content:  FinalAnswer{Format: "markdown", Text: markdown},
		ThreadID: threadID,
	}
}

// Failure builds the terminal error event.
func Failure(text string) Event {
	return Event{Type: EventTypeError, Content: text}
}

// JournalRecord is an emitted event as persisted for replay.
type JournalRecord struct {
	ExchangeID string    `json:"exchange_id"`
	Event      Event     `json:"event"`
	CreatedAt  time.Time `json:"created_at"`
	Sequence   uint64    `json:"sequence,omitempty"`
}

// ReplayResponse is the response for listing journaled events of an exchange.
type ReplayResponse struct {
	ExchangeID string          `json:"exchange_id"`
	Records    []JournalRecord `json:"records"`
}
