package api

import (
	"log"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"YieldHarbor/internal/fund"
	"YieldHarbor/internal/live"
	"YieldHarbor/internal/session"
	"YieldHarbor/internal/strategy"
)

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, fund.ErrInvalidAmount),
		errors.Is(err, strategy.ErrInvalidStrategy),
		errors.Is(err, session.ErrInvalidIdentity):
		return http.StatusBadRequest
	case errors.Is(err, fund.ErrInsufficientBalance),
		errors.Is(err, fund.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrIdentityNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrOperationInProgress):
		return http.StatusConflict
	case errors.Is(err, session.ErrSimulationOnly):
		return http.StatusForbidden
	case errors.Is(err, live.ErrCollaboratorFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
