package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/backsnap/backsnap/pkg/appcontext"
	"github.com/backsnap/backsnap/pkg/domain"
)

const recentRunsLimit = 20

type RunLedger interface {
	RecentRuns(ctx context.Context, backupType string, limit int) ([]domain.Run, error)
	AggregateStatistics(ctx context.Context, backupType string) (domain.Statistics, error)
}

// RunStatusHandler exposes recent runs and aggregate statistics per backup
// type for external monitoring.
type RunStatusHandler struct {
	logger      logrus.FieldLogger
	backupTypes []string
	repo        RunLedger
}

func NewRunStatusHandler(logger logrus.FieldLogger, backupTypes []string, repo RunLedger) *RunStatusHandler {
	return &RunStatusHandler{
		logger:      logger,
		backupTypes: backupTypes,
		repo:        repo,
	}
}

type runResponse struct {
	Id              int64   `json:"id"`
	Strategy        string  `json:"strategy"`
	ParentRunId     int64   `json:"parent_run_id,omitempty"`
	Outcome         string  `json:"outcome"`
	StartedAtMs     int64   `json:"started_at_ms"`
	FinishedAtMs    int64   `json:"finished_at_ms,omitempty"`
	TotalBytes      int64   `json:"total_bytes"`
	FileCount       int64   `json:"file_count"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type typeStatusResponse struct {
	BackupType  string            `json:"backup_type"`
	Statistics  domain.Statistics `json:"statistics"`
	SuccessRate float64           `json:"success_rate"`
	RecentRuns  []runResponse     `json:"recent_runs"`
}

func (h *RunStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logger := appcontext.LoggerFromContext(h.logger, ctx)

	var result []typeStatusResponse

	for _, backupType := range h.backupTypes {
		runs, err := h.repo.RecentRuns(ctx, backupType, recentRunsLimit)
		if err != nil {
			logger.WithError(err).Error("Unable to query recent runs")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		stats, err := h.repo.AggregateStatistics(ctx, backupType)
		if err != nil {
			logger.WithError(err).Error("Unable to query run statistics")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		status := typeStatusResponse{
			BackupType:  backupType,
			Statistics:  stats,
			SuccessRate: stats.SuccessRate(),
		}

		for _, run := range runs {
			resp := runResponse{
				Id:              run.Id,
				Strategy:        run.Strategy.String(),
				ParentRunId:     run.ParentRunId,
				Outcome:         run.Outcome.String(),
				StartedAtMs:     run.StartedAt.UnixNano() / 1e6,
				TotalBytes:      run.TotalBytes,
				FileCount:       run.FileCount,
				DurationSeconds: run.DurationSeconds,
			}
			if run.FinishedAt != nil {
				resp.FinishedAtMs = run.FinishedAt.UnixNano() / 1e6
			}

			status.RecentRuns = append(status.RecentRuns, resp)
		}

		result = append(result, status)
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(result); err != nil {
		logger.WithError(err).Error("Unable to encode response")
		w.WriteHeader(http.StatusInternalServerError)
	}
}
