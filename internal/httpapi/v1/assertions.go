package v1

import (
	"github.com/tinoosan/cashbook/internal/storage/memory"
)

var (
	_ Store        = (*memory.Store)(nil)
	_ ReadyChecker = (*memory.Store)(nil)
)
