package domain

import (
	"context"
)

// Sweeper drives time-based transitions (window opening, expiry).
type Sweeper interface {
	Sweep(ctx context.Context)
	Start(ctx context.Context) error
	Stop() error
}
