package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/backsnap/backsnap/pkg/domain"
)

// LogNotifier reports terminal run outcomes through the application log.
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{
		logger: logger,
	}
}

func (n *LogNotifier) RunFinished(run domain.Run, message string) {
	n.logger.WithFields(logrus.Fields{
		"run_id":      run.Id,
		"backup_type": run.BackupType,
		"outcome":     run.Outcome.String(),
	}).Info(message)
}
