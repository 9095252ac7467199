package oracle

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"price-oracle/src/interfaces"
)

// MaxPairLength bounds pair identifiers to the width of a chain account name.
const MaxPairLength = 12

var pairPattern = regexp.MustCompile(`^[A-Za-z0-9.]+$`)

// ValidatePair checks the shape of a pair identifier.
func ValidatePair(pair string) error {
	if pair == "" || len(pair) > MaxPairLength || !pairPattern.MatchString(pair) {
		return fmt.Errorf("%w: %q", ErrInvalidPair, pair)
	}
	return nil
}

// -----------------------------------------------------------------------------
// PairRegistry is the set of pairs eligible for reporting.
// -----------------------------------------------------------------------------

type PairRegistry struct {
	tx            interfaces.ITx
	systemAccount string
}

func NewPairRegistry(tx interfaces.ITx, systemAccount string) *PairRegistry {
	return &PairRegistry{tx: tx, systemAccount: systemAccount}
}

// -----------------------------------------------------------------------------

// Register adds pair on behalf of caller. Only the system account may register,
// and registering a known pair is an error rather than a no-op.
func (r *PairRegistry) Register(caller, pair string, now time.Time) error {
	if caller != r.systemAccount {
		return fmt.Errorf("%w: %s cannot register pairs", ErrUnauthorized, caller)
	}
	if err := ValidatePair(pair); err != nil {
		return err
	}

	exists, err := r.tx.HasPair(pair)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePair, pair)
	}

	return r.tx.InsertPair(pair, now)
}

// -----------------------------------------------------------------------------

func (r *PairRegistry) IsRegistered(pair string) (bool, error) {
	return r.tx.HasPair(pair)
}

// -----------------------------------------------------------------------------

// List returns every registered pair in ascending order.
func (r *PairRegistry) List() ([]string, error) {
	pairs, err := r.tx.ListPairs()
	if err != nil {
		return nil, err
	}
	sort.Strings(pairs)
	return pairs, nil
}
