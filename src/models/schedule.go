package models

// MProducerSchedule lists the producers allowed to report prices. Only the
// active set counts towards the quorum size.
type MProducerSchedule struct {
	Active  []string `yaml:"active" json:"active"`
	Standby []string `yaml:"standby" json:"standby"`
}
