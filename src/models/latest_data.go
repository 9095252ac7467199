package models

// -----------------------------------------------------------------------------
// Push Feed Structures
// -----------------------------------------------------------------------------

const (
	UpdateTypeInitial = "INITIAL"
	UpdateTypeUpdate  = "UPDATE"
)

// MPriceUpdate is sent to feed subscribers. INITIAL carries every published
// pair, UPDATE only the pairs that changed in one submission.
type MPriceUpdate struct {
	Type      string                     `json:"type"`
	Producer  string                     `json:"producer,omitempty"`
	Prices    map[string]MPublishedPrice `json:"prices"`
	Timestamp int64                      `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string   `json:"command"`
	Pairs   []string `json:"pairs"`
}

// -----------------------------------------------------------------------------
// Submission outcome returned to callers
// -----------------------------------------------------------------------------

// MSubmitResult reports which submitted pairs were published and which were
// deferred for lack of quorum.
type MSubmitResult struct {
	Producer  string                     `json:"producer"`
	Published map[string]MPublishedPrice `json:"published"`
	Deferred  []string                   `json:"deferred"`
	Timestamp int64                      `json:"timestamp"`
}
