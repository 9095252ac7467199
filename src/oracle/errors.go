package oracle

import "errors"

var (
	// ErrUnauthorized indicates the caller is not the privileged system account.
	ErrUnauthorized = errors.New("caller is not authorized")
	// ErrUnauthorizedProducer indicates the caller is not a scheduled producer.
	ErrUnauthorizedProducer = errors.New("caller is not an active producer")
	// ErrUnknownPair indicates the pair was never registered.
	ErrUnknownPair = errors.New("unknown pair")
	// ErrDuplicatePair indicates the pair is already registered.
	ErrDuplicatePair = errors.New("pair already registered")
	// ErrSubmissionTooFrequent indicates the producer submitted within the window.
	ErrSubmissionTooFrequent = errors.New("submission too frequent")
	// ErrInvalidPair indicates a malformed pair identifier.
	ErrInvalidPair = errors.New("invalid pair identifier")
	// ErrInvalidPrice indicates a price that is not a finite positive number.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrEmptySubmission indicates a submission without any pair.
	ErrEmptySubmission = errors.New("submission has no pairs")
)

// Reason maps an oracle error to a short machine-readable code, used by the
// transports and metrics. Unknown errors map to "internal".
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnauthorizedProducer):
		return "unauthorized_producer"
	case errors.Is(err, ErrUnknownPair):
		return "unknown_pair"
	case errors.Is(err, ErrDuplicatePair):
		return "duplicate_pair"
	case errors.Is(err, ErrSubmissionTooFrequent):
		return "submission_too_frequent"
	case errors.Is(err, ErrInvalidPair):
		return "invalid_pair"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrEmptySubmission):
		return "empty_submission"
	default:
		return "internal"
	}
}
