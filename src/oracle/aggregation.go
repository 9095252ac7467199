package oracle

import (
	"sort"
	"time"

	"price-oracle/src/analysis/core"
	"price-oracle/src/interfaces"
	"price-oracle/src/utils"
)

// -----------------------------------------------------------------------------

// Round is the outcome of aggregating one pair.
type Round struct {
	Pair      string
	Reporters int
	Threshold int
	Stats     core.RoundStats
	Raw       float64   // median across reporters
	Points    []float64 // history including Raw, oldest first
	Price     float64   // value to publish
	Change    float64   // relative to the previous published price, 0 on the first round
	Published bool      // false when quorum was not reached
}

// -----------------------------------------------------------------------------
// AggregationEngine reduces fresh submissions to one consensus value per pair.
// -----------------------------------------------------------------------------

type AggregationEngine struct {
	submissions   *SubmissionStore
	schedule      interfaces.IProducerSchedule
	historyWindow int
}

func NewAggregationEngine(submissions *SubmissionStore, schedule interfaces.IProducerSchedule, historyWindow int) *AggregationEngine {
	if historyWindow < 1 {
		historyWindow = 1
	}
	return &AggregationEngine{
		submissions:   submissions,
		schedule:      schedule,
		historyWindow: historyWindow,
	}
}

// -----------------------------------------------------------------------------

// RelevantPrices collects every fresh value reported for pair. Producers whose
// latest row omits the pair contribute nothing.
func (e *AggregationEngine) RelevantPrices(pair string, now time.Time) ([]float64, error) {
	rows, err := e.submissions.FreshRows(now)
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if v, ok := row.PairsData[pair]; ok {
			values = append(values, v)
		}
	}
	return values, nil
}

// -----------------------------------------------------------------------------

// MajorityThreshold is the quorum size for total active reporters: floor(2n/3)+1.
func MajorityThreshold(totalReporters int) int {
	if totalReporters < 0 {
		totalReporters = 0
	}
	return totalReporters*2/3 + 1
}

// -----------------------------------------------------------------------------

// Compute runs one aggregation round for pair against its accepted history.
// Without quorum the returned round has Published false and history is left
// as it was.
func (e *AggregationEngine) Compute(pair string, now time.Time, history []float64) (Round, error) {
	values, err := e.RelevantPrices(pair, now)
	if err != nil {
		return Round{}, err
	}

	round := Round{
		Pair:      pair,
		Reporters: len(values),
		Threshold: MajorityThreshold(e.schedule.ActiveProducerCount()),
	}
	if round.Reporters < round.Threshold {
		return round, nil
	}

	sort.Float64s(values)
	round.Stats = core.ComputeRoundStats(values)
	round.Raw = core.Median(values)

	window := utils.NewRingBufferFrom(e.historyWindow, history)
	window.Append(round.Raw)
	round.Points = window.GetAll()

	round.Price = core.SubsetMedian(round.Points)
	if len(history) > 0 {
		round.Change = core.CalculateChangePercent(round.Price, core.SubsetMedian(history))
	}
	round.Published = true
	return round, nil
}
