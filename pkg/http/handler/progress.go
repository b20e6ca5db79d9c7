package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/backsnap/backsnap/pkg/domain"
)

type ProgressSource interface {
	ActiveRuns() []domain.ProgressSnapshot
}

// RunProgressHandler exposes read-only snapshots of currently executing
// runs.
type RunProgressHandler struct {
	logger logrus.FieldLogger
	source ProgressSource
}

func NewRunProgressHandler(logger logrus.FieldLogger, source ProgressSource) *RunProgressHandler {
	return &RunProgressHandler{
		logger: logger,
		source: source,
	}
}

func (h *RunProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshots := h.source.ActiveRuns()

	enc := json.NewEncoder(w)
	if err := enc.Encode(snapshots); err != nil {
		h.logger.WithError(err).Error("Unable to encode response")
		w.WriteHeader(http.StatusInternalServerError)
	}
}
