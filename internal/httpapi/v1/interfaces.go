package v1

import (
	"context"

	"github.com/tinoosan/cashbook/internal/service/balance"
	"github.com/tinoosan/cashbook/internal/service/category"
	"github.com/tinoosan/cashbook/internal/service/record"
)

// Store composes every repository and writer the services need.
// It is satisfied by the memory, postgres and mongo stores.
type Store interface {
	record.Repo
	record.Writer
	category.Repo
	category.Writer
	balance.Repo
	balance.Writer
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
