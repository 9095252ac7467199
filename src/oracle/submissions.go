package oracle

import (
	"fmt"
	"math"
	"sort"
	"time"

	"price-oracle/src/interfaces"
	"price-oracle/src/models"
)

// SubmissionWindow is both the minimum spacing between two submissions of one
// producer and the age after which a submission stops counting.
const SubmissionWindow = 3600 * time.Second

// -----------------------------------------------------------------------------
// SubmissionStore keeps the latest submission of every producer.
// -----------------------------------------------------------------------------

type SubmissionStore struct {
	tx       interfaces.ITx
	registry *PairRegistry
	schedule interfaces.IProducerSchedule
	window   time.Duration
}

func NewSubmissionStore(tx interfaces.ITx, registry *PairRegistry, schedule interfaces.IProducerSchedule) *SubmissionStore {
	return &SubmissionStore{
		tx:       tx,
		registry: registry,
		schedule: schedule,
		window:   SubmissionWindow,
	}
}

// -----------------------------------------------------------------------------

// Record validates and stores the producer's full set of prices, replacing any
// previous row. Checks run in order and the first failure wins:
// producer, pairs, rate limit, then the values themselves.
func (s *SubmissionStore) Record(producer string, pairsData map[string]float64, now time.Time) (models.MSubmission, error) {
	// 1. Producer must be scheduled
	if !s.schedule.IsActiveProducer(producer) {
		return models.MSubmission{}, fmt.Errorf("%w: %s", ErrUnauthorizedProducer, producer)
	}

	if len(pairsData) == 0 {
		return models.MSubmission{}, ErrEmptySubmission
	}

	// 2. Every pair must be registered. Sorted so the reported pair is stable.
	pairs := make([]string, 0, len(pairsData))
	for pair := range pairsData {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	for _, pair := range pairs {
		ok, err := s.registry.IsRegistered(pair)
		if err != nil {
			return models.MSubmission{}, err
		}
		if !ok {
			return models.MSubmission{}, fmt.Errorf("%w: %s", ErrUnknownPair, pair)
		}
	}

	// 3. Rate limit against the previous row
	prev, err := s.tx.GetSubmission(producer)
	if err != nil {
		return models.MSubmission{}, err
	}
	if prev != nil {
		if elapsed := now.Sub(prev.LastUpdate); elapsed < s.window {
			return models.MSubmission{}, fmt.Errorf("%w: %s must wait %s", ErrSubmissionTooFrequent, producer, (s.window - elapsed).Round(time.Second))
		}
	}

	// 4. Values must be usable prices
	for _, pair := range pairs {
		if v := pairsData[pair]; math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return models.MSubmission{}, fmt.Errorf("%w: %s=%v", ErrInvalidPrice, pair, v)
		}
	}

	sub := models.MSubmission{
		Producer:   producer,
		PairsData:  pairsData,
		LastUpdate: now,
	}.Clone()

	if err := s.tx.PutSubmission(sub); err != nil {
		return models.MSubmission{}, err
	}
	return sub, nil
}

// -----------------------------------------------------------------------------

// Get returns the producer's current row, or nil.
func (s *SubmissionStore) Get(producer string) (*models.MSubmission, error) {
	return s.tx.GetSubmission(producer)
}

// -----------------------------------------------------------------------------

// FreshRows returns the rows updated less than one window before now.
// Stale rows stay in the table and are simply skipped.
func (s *SubmissionStore) FreshRows(now time.Time) ([]models.MSubmission, error) {
	rows, err := s.tx.ListSubmissions()
	if err != nil {
		return nil, err
	}

	fresh := rows[:0]
	for _, row := range rows {
		if IsFresh(row.LastUpdate, now) {
			fresh = append(fresh, row)
		}
	}
	return fresh, nil
}

// -----------------------------------------------------------------------------

// IsFresh reports whether a row stamped at lastUpdate still counts at now.
func IsFresh(lastUpdate, now time.Time) bool {
	return now.Before(lastUpdate.Add(SubmissionWindow))
}
