// Package handlers implements HTTP handlers for the SmartCards API.
package handlers

import (
	"log/slog"
	"time"

	"github.com/benx421/smartcards/internal/models"
	"github.com/benx421/smartcards/internal/service"
	"github.com/benx421/smartcards/internal/session"
)

// DefaultSpendsLimit is how many spends GET .../spends returns without ?limit=
const DefaultSpendsLimit = 10

// Handler serves every API endpoint
type Handler struct {
	portfolios    service.PortfolioReader
	cards         service.CardOperator
	healthChecker service.HealthChecker
	tracker       *service.PortfolioTracker
	session       *session.Session
	location      *time.Location
	logger        *slog.Logger
	units         models.Units
}

// NewHandler creates a new Handler with injected service dependencies.
// location is the default timezone for daily volume buckets.
func NewHandler(
	portfolios service.PortfolioReader,
	cards service.CardOperator,
	healthChecker service.HealthChecker,
	tracker *service.PortfolioTracker,
	sess *session.Session,
	units models.Units,
	location *time.Location,
	logger *slog.Logger,
) *Handler {
	if location == nil {
		location = time.Local
	}
	return &Handler{
		portfolios:    portfolios,
		cards:         cards,
		healthChecker: healthChecker,
		tracker:       tracker,
		session:       sess,
		units:         units,
		location:      location,
		logger:        logger,
	}
}
