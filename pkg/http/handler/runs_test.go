package handler

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/backsnap/backsnap/pkg/domain"
)

// region runLedgerMock
type runLedgerMock struct {
	mock.Mock
}

func (m *runLedgerMock) RecentRuns(ctx context.Context, backupType string, limit int) ([]domain.Run, error) {
	args := m.Called(ctx, backupType, limit)

	if r := args.Get(0); r != nil {
		return r.([]domain.Run), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *runLedgerMock) AggregateStatistics(ctx context.Context, backupType string) (domain.Statistics, error) {
	args := m.Called(ctx, backupType)
	return args.Get(0).(domain.Statistics), args.Error(1)
}

// endregion

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

func TestRunStatusHandler(t *testing.T) {
	startedAt := time.Now().UTC().Add(-time.Minute)
	finishedAt := startedAt.Add(30 * time.Second)

	repo := &runLedgerMock{}
	repo.On("RecentRuns", mock.Anything, "personal", 20).Return([]domain.Run{
		{
			Id:              1,
			BackupType:      "personal",
			Strategy:        domain.StrategyDifferential,
			ParentRunId:     100,
			StartedAt:       startedAt,
			FinishedAt:      &finishedAt,
			Outcome:         domain.OutcomeSucceeded,
			TotalBytes:      1234,
			FileCount:       5,
			DurationSeconds: 30,
		},
	}, nil)
	repo.On("AggregateStatistics", mock.Anything, "personal").Return(domain.Statistics{
		BackupType:   "personal",
		RunCount:     4,
		SuccessCount: 3,
		FailureCount: 1,
	}, nil)

	h := NewRunStatusHandler(discardLogger(), []string{"personal"}, repo)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/status/runs", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var result []struct {
		BackupType  string  `json:"backup_type"`
		SuccessRate float64 `json:"success_rate"`
		RecentRuns  []struct {
			Id       int64  `json:"id"`
			Strategy string `json:"strategy"`
			Outcome  string `json:"outcome"`
		} `json:"recent_runs"`
	}

	assert.Nil(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result, 1)
	assert.Equal(t, "personal", result[0].BackupType)
	assert.InDelta(t, 0.75, result[0].SuccessRate, 1e-9)
	assert.Len(t, result[0].RecentRuns, 1)
	assert.Equal(t, int64(1), result[0].RecentRuns[0].Id)
	assert.Equal(t, "differential", result[0].RecentRuns[0].Strategy)
	assert.Equal(t, "succeeded", result[0].RecentRuns[0].Outcome)
}

func TestRunStatusHandler_LedgerFailure(t *testing.T) {
	repo := &runLedgerMock{}
	repo.On("RecentRuns", mock.Anything, "personal", 20).Return(nil, errors.New("db is down"))

	h := NewRunStatusHandler(discardLogger(), []string{"personal"}, repo)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/status/runs", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// region progressSourceStub
type progressSourceStub struct {
	snapshots []domain.ProgressSnapshot
}

func (s *progressSourceStub) ActiveRuns() []domain.ProgressSnapshot {
	return s.snapshots
}

// endregion

func TestRunProgressHandler(t *testing.T) {
	source := &progressSourceStub{
		snapshots: []domain.ProgressSnapshot{
			{RunId: 1, BackupType: "personal", Percent: 50, FilesProcessed: 5, TotalFiles: 10},
		},
	}

	h := NewRunProgressHandler(discardLogger(), source)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/status/progress", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var snapshots []domain.ProgressSnapshot
	assert.Nil(t, json.Unmarshal(w.Body.Bytes(), &snapshots))
	assert.Len(t, snapshots, 1)
	assert.Equal(t, int64(1), snapshots[0].RunId)
	assert.InDelta(t, 50.0, snapshots[0].Percent, 1e-9)
}
