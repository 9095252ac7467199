package oracle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"price-oracle/src/interfaces"
	"price-oracle/src/logger"
	"price-oracle/src/metrics"
	"price-oracle/src/models"
	"price-oracle/src/utils"
)

// -----------------------------------------------------------------------------
// OracleService runs register and submit calls one at a time, each inside a
// single store transaction: either every write of a call lands or none does.
// -----------------------------------------------------------------------------

type OracleService struct {
	mu sync.RWMutex

	db        interfaces.IDatabase
	schedule  interfaces.IProducerSchedule
	clock     interfaces.IClock
	exchanger interfaces.IDataExchanger
	logger    *logger.Logger

	systemAccount string
	historyWindow int
	cache         *lru.Cache[string, models.MPublishedPrice]
}

// -----------------------------------------------------------------------------

// NewOracleService wires the service. A nil clock uses the wall clock.
func NewOracleService(cfg *models.MConfig, log *logger.Logger, db interfaces.IDatabase, schedule interfaces.IProducerSchedule, clock interfaces.IClock) (*OracleService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("oracle service requires a config")
	}
	if db == nil || schedule == nil {
		return nil, fmt.Errorf("oracle service requires a database and a producer schedule")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}

	s := &OracleService{
		db:            db,
		schedule:      schedule,
		clock:         clock,
		logger:        log,
		systemAccount: cfg.Oracle.SystemAccount,
		historyWindow: cfg.Oracle.PricePointsWindow,
	}

	if cfg.Oracle.ReadCacheSize > 0 {
		cache, err := lru.New[string, models.MPublishedPrice](cfg.Oracle.ReadCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create read cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

// SetExchanger attaches the push feed notified after every publishing submit.
func (s *OracleService) SetExchanger(ex interfaces.IDataExchanger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanger = ex
}

// -----------------------------------------------------------------------------
// Transactions
// -----------------------------------------------------------------------------

// update runs fn in a write transaction committed only when fn succeeds.
// Callers hold s.mu.
func (s *OracleService) update(ctx context.Context, fn func(tx interfaces.ITx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// view runs fn in a transaction that is always rolled back.
func (s *OracleService) view(ctx context.Context, fn func(tx interfaces.ITx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(tx)
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// RegisterPair adds pair to the registry on behalf of caller.
func (s *OracleService) RegisterPair(ctx context.Context, caller, pair string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	err := s.update(ctx, func(tx interfaces.ITx) error {
		return NewPairRegistry(tx, s.systemAccount).Register(caller, pair, now)
	})
	if err != nil {
		s.logger.Warning("Register pair %s by %s rejected: %v", pair, caller, err)
		return err
	}

	s.logger.Info("Registered pair %s", pair)
	return nil
}

// -----------------------------------------------------------------------------

// EnsurePairs registers every missing pair as the system account and returns
// the ones that were added. Known pairs are skipped.
func (s *OracleService) EnsurePairs(ctx context.Context, pairs []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var added []string
	err := s.update(ctx, func(tx interfaces.ITx) error {
		registry := NewPairRegistry(tx, s.systemAccount)
		for _, pair := range pairs {
			ok, err := registry.IsRegistered(pair)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			if err := registry.Register(s.systemAccount, pair, now); err != nil {
				return err
			}
			added = append(added, pair)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(added) > 0 {
		s.logger.Info("Bootstrapped pairs: %v", added)
	}
	return added, nil
}

// -----------------------------------------------------------------------------

// SubmitPrices records the producer's prices and runs one aggregation round
// for every submitted pair. Pairs short of quorum are reported as deferred.
func (s *OracleService) SubmitPrices(ctx context.Context, producer string, pairsData map[string]float64) (models.MSubmitResult, error) {
	start := time.Now()

	result, rounds, err := s.submit(ctx, producer, pairsData)
	metrics.RecordSubmission(submissionLabel(err), time.Since(start))
	if err != nil {
		s.logger.Warning("Submission from %s rejected: %v", producer, err)
		return models.MSubmitResult{}, err
	}

	for _, round := range rounds {
		if !round.Published {
			metrics.RecordQuorumDeferred(round.Pair)
			continue
		}
		metrics.RecordRound(round.Pair, round.Reporters, round.Stats.Std)
		metrics.RecordPublish(round.Pair, round.Price)
		s.logger.Debug("Published %s at %.8g (%+.2f%%, %d reporters)", round.Pair, round.Price, round.Change*100, round.Reporters)
	}

	s.logger.Debug("Submission from %s: published=%d deferred=%v", producer, len(result.Published), result.Deferred)
	return result, nil
}

func (s *OracleService) submit(ctx context.Context, producer string, pairsData map[string]float64) (models.MSubmitResult, []Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	result := models.MSubmitResult{
		Producer:  producer,
		Published: map[string]models.MPublishedPrice{},
		Deferred:  []string{},
		Timestamp: now.Unix(),
	}
	var rounds []Round

	err := s.update(ctx, func(tx interfaces.ITx) error {
		registry := NewPairRegistry(tx, s.systemAccount)
		submissions := NewSubmissionStore(tx, registry, s.schedule)
		engine := NewAggregationEngine(submissions, s.schedule, s.historyWindow)
		published := NewPublishedPriceStore(tx)

		// 1. Replace the producer's row
		sub, err := submissions.Record(producer, pairsData, now)
		if err != nil {
			return err
		}

		// 2. One round per submitted pair, in pair order
		for _, pair := range sortedPairs(sub.PairsData) {
			history, err := published.History(pair)
			if err != nil {
				return err
			}

			round, err := engine.Compute(pair, now, history)
			if err != nil {
				return err
			}
			rounds = append(rounds, round)

			if !round.Published {
				result.Deferred = append(result.Deferred, pair)
				continue
			}

			// 3. Publish
			row, err := published.Publish(pair, round.Price, round.Points, now)
			if err != nil {
				return err
			}
			result.Published[pair] = row
		}
		return nil
	})
	if err != nil {
		return models.MSubmitResult{}, nil, err
	}

	// Committed: refresh the cache and notify subscribers
	for pair, row := range result.Published {
		if s.cache != nil {
			s.cache.Add(pair, row.Clone())
		}
	}
	if s.exchanger != nil && len(result.Published) > 0 {
		update := &models.MPriceUpdate{
			Type:      models.UpdateTypeUpdate,
			Producer:  producer,
			Prices:    make(map[string]models.MPublishedPrice, len(result.Published)),
			Timestamp: now.Unix(),
		}
		for pair, row := range result.Published {
			update.Prices[pair] = row.Clone()
		}
		s.exchanger.Broadcast(update)
	}

	return result, rounds, nil
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// Current returns the published price of pair, or nil if it never reached quorum.
func (s *OracleService) Current(ctx context.Context, pair string) (*models.MPublishedPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cache != nil {
		if row, ok := s.cache.Get(pair); ok {
			out := row.Clone()
			return &out, nil
		}
	}

	var row *models.MPublishedPrice
	err := s.view(ctx, func(tx interfaces.ITx) error {
		var err error
		row, err = NewPublishedPriceStore(tx).Current(pair)
		return err
	})
	if err != nil || row == nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Add(pair, row.Clone())
	}
	return row, nil
}

// -----------------------------------------------------------------------------

// ListPairs returns the registered pairs in ascending order.
func (s *OracleService) ListPairs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pairs []string
	err := s.view(ctx, func(tx interfaces.ITx) error {
		var err error
		pairs, err = NewPairRegistry(tx, s.systemAccount).List()
		return err
	})
	return pairs, err
}

// -----------------------------------------------------------------------------

// ListPrices returns every published price ordered by pair.
func (s *OracleService) ListPrices(ctx context.Context) ([]models.MPublishedPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []models.MPublishedPrice
	err := s.view(ctx, func(tx interfaces.ITx) error {
		var err error
		rows, err = NewPublishedPriceStore(tx).List()
		return err
	})
	return rows, err
}

// -----------------------------------------------------------------------------

// Submission returns the producer's latest row, fresh or not, or nil.
func (s *OracleService) Submission(ctx context.Context, producer string) (*models.MSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row *models.MSubmission
	err := s.view(ctx, func(tx interfaces.ITx) error {
		var err error
		row, err = tx.GetSubmission(producer)
		return err
	})
	return row, err
}

// -----------------------------------------------------------------------------

func (s *OracleService) Status(ctx context.Context) (models.MOracleStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	active := s.schedule.ActiveProducerCount()
	status := models.MOracleStatus{
		ActiveProducers: active,
		QuorumThreshold: MajorityThreshold(active),
		Timestamp:       now.Unix(),
	}

	err := s.view(ctx, func(tx interfaces.ITx) error {
		registry := NewPairRegistry(tx, s.systemAccount)
		pairs, err := registry.List()
		if err != nil {
			return err
		}
		prices, err := tx.ListPublishedPrices()
		if err != nil {
			return err
		}
		fresh, err := NewSubmissionStore(tx, registry, s.schedule).FreshRows(now)
		if err != nil {
			return err
		}

		status.Pairs = len(pairs)
		status.PublishedPairs = len(prices)
		status.FreshSubmissions = len(fresh)
		return nil
	})
	return status, err
}

// -----------------------------------------------------------------------------

func sortedPairs(data map[string]float64) []string {
	pairs := make([]string, 0, len(data))
	for pair := range data {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	return pairs
}

func submissionLabel(err error) string {
	if err == nil {
		return "accepted"
	}
	return Reason(err)
}
