package models

import "time"

// MSubmission is the latest price report of one producer. A producer owns at
// most one row; every submit replaces it wholesale.
type MSubmission struct {
	Producer   string             `json:"producer"`
	PairsData  map[string]float64 `json:"pairs_data"`
	LastUpdate time.Time          `json:"last_update"`
}

// Clone returns a copy that shares no map with the receiver.
func (s MSubmission) Clone() MSubmission {
	out := MSubmission{Producer: s.Producer, LastUpdate: s.LastUpdate}
	out.PairsData = make(map[string]float64, len(s.PairsData))
	for k, v := range s.PairsData {
		out.PairsData[k] = v
	}
	return out
}
