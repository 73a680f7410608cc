package models

import (
	"strconv"
	"time"
)

// FunnelEventType is the closed set of client-trackable funnel events, from
// page load through conversion.
type FunnelEventType string

const (
	FunnelPageView           FunnelEventType = "page_view"
	FunnelJSLoaded           FunnelEventType = "js_loaded"
	FunnelHumanDetected      FunnelEventType = "human_detected"
	FunnelCTAClicked         FunnelEventType = "cta_clicked"
	FunnelSignupModalOpened  FunnelEventType = "signup_modal_opened"
	FunnelSignupSubmitted    FunnelEventType = "signup_submitted"
	FunnelSignupCompleted    FunnelEventType = "signup_completed"
	FunnelPricingViewed      FunnelEventType = "pricing_viewed"
	FunnelScroll25           FunnelEventType = "scroll_25"
	FunnelScroll50           FunnelEventType = "scroll_50"
	FunnelScroll75           FunnelEventType = "scroll_75"
	FunnelScroll100          FunnelEventType = "scroll_100"
)

var validFunnelEventTypes = map[FunnelEventType]bool{
	FunnelPageView:          true,
	FunnelJSLoaded:          true,
	FunnelHumanDetected:     true,
	FunnelCTAClicked:        true,
	FunnelSignupModalOpened: true,
	FunnelSignupSubmitted:   true,
	FunnelSignupCompleted:   true,
	FunnelPricingViewed:     true,
	FunnelScroll25:          true,
	FunnelScroll50:          true,
	FunnelScroll75:          true,
	FunnelScroll100:         true,
}

// MaxFunnelBatchSize is the largest number of events a single ingestion
// batch may carry.
const MaxFunnelBatchSize = 50

// FunnelEvent is one append-only analytics row: a visitor action tied to a
// page and, once the visitor authenticates, a user id. UserID is empty for
// anonymous visitors; a later event from the same VisitorID carrying a
// UserID stitches the visitor to that user without rewriting prior rows -
// readers join on VisitorID to recover the full journey either way.
type FunnelEvent struct {
	EventType FunnelEventType `json:"event"`
	VisitorID string          `json:"visitor_id"`
	UserID    string          `json:"user_id,omitempty"`
	PagePath  string          `json:"page"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// FunnelBatch is one client ingestion request: a single visitor reporting up
// to MaxFunnelBatchSize events from one page session.
type FunnelBatch struct {
	VisitorID string        `json:"visitor_id"`
	Events    []FunnelEvent `json:"events"`
}

// ValidateFunnelEvent reports whether e is well-formed: a known event type,
// a non-empty visitor id, and a non-empty page path. It does not check
// CreatedAt, which callers stamp on ingest.
func ValidateFunnelEvent(e FunnelEvent) error {
	if !validFunnelEventTypes[e.EventType] {
		return &FunnelValidationError{Field: "event", Reason: "not a recognized funnel event type"}
	}
	if e.VisitorID == "" {
		return &FunnelValidationError{Field: "visitor_id", Reason: "required"}
	}
	if e.PagePath == "" {
		return &FunnelValidationError{Field: "page", Reason: "required"}
	}
	return nil
}

// ValidateFunnelBatch reports whether b is a well-formed ingestion batch: a
// shared visitor id, at least one and at most MaxFunnelBatchSize events, and
// every event individually valid. Every event in the batch must carry either
// no visitor id of its own or the batch's visitor id - a batch speaks for
// one visitor.
func ValidateFunnelBatch(b FunnelBatch) error {
	if b.VisitorID == "" {
		return &FunnelValidationError{Field: "visitor_id", Reason: "required"}
	}
	if len(b.Events) == 0 {
		return &FunnelValidationError{Field: "events", Reason: "batch must contain at least one event"}
	}
	if len(b.Events) > MaxFunnelBatchSize {
		return &FunnelValidationError{Field: "events", Reason: "batch exceeds the maximum of 50 events"}
	}
	for i, e := range b.Events {
		if e.VisitorID != "" && e.VisitorID != b.VisitorID {
			return &FunnelValidationError{Field: "events", Reason: "event visitor id does not match the batch visitor id", Index: i}
		}
		e.VisitorID = b.VisitorID
		if err := ValidateFunnelEvent(e); err != nil {
			return err
		}
	}
	return nil
}

// FunnelValidationError reports a single rejected field in a FunnelEvent or
// FunnelBatch. Index is the event's position within a batch, or -1 for a
// batch-level field.
type FunnelValidationError struct {
	Field  string
	Reason string
	Index  int
}

func (e *FunnelValidationError) Error() string {
	if e.Index > 0 {
		return "funnel event " + e.Field + " (index " + strconv.Itoa(e.Index) + "): " + e.Reason
	}
	return "funnel " + e.Field + ": " + e.Reason
}
