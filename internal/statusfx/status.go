package statusfx

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/backsnap/backsnap/pkg/domain"
	"github.com/backsnap/backsnap/pkg/http/handler"
)

func RunStatusHandler(
	logger *logrus.Logger,
	backupTypes []string,
	ledger handler.RunLedger,
) *handler.RunStatusHandler {
	return handler.NewRunStatusHandler(logger, backupTypes, ledger)
}

func RunProgressHandler(
	logger *logrus.Logger,
	service *domain.BackupService,
) *handler.RunProgressHandler {
	return handler.NewRunProgressHandler(logger, service)
}

func RegisterRunStatusHandler(router *mux.Router, h *handler.RunStatusHandler) {
	router.Handle("/status/runs", h)
}

func RegisterRunProgressHandler(router *mux.Router, h *handler.RunProgressHandler) {
	router.Handle("/status/progress", h)
}
