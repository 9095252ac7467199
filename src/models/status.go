package models

// MOracleStatus summarizes the service for health checks and the CLI.
type MOracleStatus struct {
	Pairs            int   `json:"pairs"`
	PublishedPairs   int   `json:"published_pairs"`
	ActiveProducers  int   `json:"active_producers"`
	QuorumThreshold  int   `json:"quorum_threshold"`
	FreshSubmissions int   `json:"fresh_submissions"`
	Timestamp        int64 `json:"timestamp"`
}
