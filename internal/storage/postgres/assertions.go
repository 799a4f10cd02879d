package postgres

import (
	"github.com/tinoosan/cashbook/internal/service/balance"
	"github.com/tinoosan/cashbook/internal/service/category"
	"github.com/tinoosan/cashbook/internal/service/record"
)

var (
	_ record.Repo              = (*Store)(nil)
	_ record.Writer            = (*Store)(nil)
	_ category.Repo            = (*Store)(nil)
	_ category.Writer          = (*Store)(nil)
	_ category.CascadeBeginner = (*Store)(nil)
	_ category.Cascade         = (*Tx)(nil)
	_ balance.Repo             = (*Store)(nil)
	_ balance.Writer           = (*Store)(nil)
)
