package http

import (
	"context"

	"github.com/mitchens84/APPLE-HEALTH/internal/services"
	"github.com/mitchens84/APPLE-HEALTH/pkg/contracts/domain"
)

// ProcessingServiceInterface defines the processing operations the session
// handler depends on.
type ProcessingServiceInterface interface {
	ListTypes(ctx context.Context, sess *services.Session) ([]string, error)
	ExtractDataset(ctx context.Context, sess *services.Session, rawType string) (*domain.DatasetSummary, error)
	ExtractWorkouts(ctx context.Context, sess *services.Session) (*domain.DatasetSummary, error)
	ProcessAll(ctx context.Context, sess *services.Session, types []string, includeWorkouts bool) (*services.BatchResult, error)
	WriteReport(ctx context.Context, sess *services.Session) (string, error)
}
