package port

import (
	"context"

	"github.com/rl1809/commerce-core/internal/core/domain"
)

type EventPublisher interface {
	// PublishRollup announces a committed rollup
	PublishRollup(ctx context.Context, result domain.RollupResult) error
}
