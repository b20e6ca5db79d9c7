package sqlfx

import (
	"github.com/jmoiron/sqlx"

	"github.com/backsnap/backsnap/pkg/domain"
	"github.com/backsnap/backsnap/pkg/http/handler"
	"github.com/backsnap/backsnap/pkg/storage"
)

func Ledger(db *sqlx.DB) (
	*storage.RunLedger,
	domain.RunLedger,
	handler.RunLedger,
) {
	ledger := storage.NewRunLedger(db)

	return ledger, ledger, ledger
}
