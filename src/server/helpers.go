package server

import (
	"errors"
	"net/http"

	"price-oracle/src/models"
	"price-oracle/src/oracle"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// statusForError maps oracle rejections to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, oracle.ErrUnauthorized), errors.Is(err, oracle.ErrUnauthorizedProducer):
		return http.StatusForbidden
	case errors.Is(err, oracle.ErrDuplicatePair):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrSubmissionTooFrequent):
		return http.StatusTooManyRequests
	case errors.Is(err, oracle.ErrUnknownPair),
		errors.Is(err, oracle.ErrInvalidPair),
		errors.Is(err, oracle.ErrInvalidPrice),
		errors.Is(err, oracle.ErrEmptySubmission):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) abortWithError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.Logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":   oracle.Reason(err),
		"message": err.Error(),
	})
}

// -----------------------------------------------------------------------------

// filterPrices keeps the pairs in filter. A nil filter keeps everything.
func filterPrices(prices map[string]models.MPublishedPrice, filter map[string]struct{}) map[string]models.MPublishedPrice {
	out := make(map[string]models.MPublishedPrice, len(prices))
	for pair, p := range prices {
		if filter != nil {
			if _, ok := filter[pair]; !ok {
				continue
			}
		}
		out[pair] = p.Clone()
	}
	return out
}

// -----------------------------------------------------------------------------

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// -----------------------------------------------------------------------------

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
