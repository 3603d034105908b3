package ports

import (
	"context"

	"mediavault/internal/domain"
)

// Catalog enumerates series content. Seasons come back in season order, episodes
// in directory order.
type Catalog interface {
	ListSeries(ctx context.Context) ([]string, error)
	Seasons(ctx context.Context, seriesName string) ([]domain.Season, error)
}
