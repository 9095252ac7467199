package schedule

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"price-oracle/src/metrics"
	"price-oracle/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// ProducerSchedule is the in-memory set of producers allowed to report.
// Active and standby producers may submit; only active ones size the quorum.
// -----------------------------------------------------------------------------

type ProducerSchedule struct {
	mu      sync.RWMutex
	active  map[string]struct{}
	standby map[string]struct{}
}

// -----------------------------------------------------------------------------

func NewProducerSchedule(s models.MProducerSchedule) *ProducerSchedule {
	ps := &ProducerSchedule{}
	ps.Replace(s)
	return ps
}

// -----------------------------------------------------------------------------

// Replace swaps the whole schedule. Names present in both lists count as active.
func (ps *ProducerSchedule) Replace(s models.MProducerSchedule) {
	active := toSet(s.Active)
	standby := toSet(s.Standby)
	for name := range active {
		delete(standby, name)
	}

	ps.mu.Lock()
	ps.active = active
	ps.standby = standby
	ps.mu.Unlock()

	metrics.RecordActiveProducers(len(active))
}

// -----------------------------------------------------------------------------

// IsActiveProducer reports whether name is in the active or standby set.
func (ps *ProducerSchedule) IsActiveProducer(name string) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	if _, ok := ps.active[name]; ok {
		return true
	}
	_, ok := ps.standby[name]
	return ok
}

// -----------------------------------------------------------------------------

// ActiveProducerCount returns the size of the active set.
func (ps *ProducerSchedule) ActiveProducerCount() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.active)
}

// -----------------------------------------------------------------------------

// Snapshot returns the current schedule with names sorted.
func (ps *ProducerSchedule) Snapshot() models.MProducerSchedule {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return models.MProducerSchedule{
		Active:  sortedKeys(ps.active),
		Standby: sortedKeys(ps.standby),
	}
}

// -----------------------------------------------------------------------------

// LoadScheduleFile reads a YAML schedule with "active" and "standby" lists.
func LoadScheduleFile(path string) (models.MProducerSchedule, error) {
	var s models.MProducerSchedule

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read schedule file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse schedule file '%s': %w", path, err)
	}
	if len(s.Active) == 0 {
		return s, fmt.Errorf("schedule file '%s' has no active producers", path)
	}
	return s, nil
}

// -----------------------------------------------------------------------------

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
