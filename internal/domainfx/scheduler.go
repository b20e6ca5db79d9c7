package domainfx

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/backsnap/backsnap/pkg/domain"
	"github.com/backsnap/backsnap/pkg/storage"
	"github.com/backsnap/backsnap/pkg/transfer"
)

// Schedule drives periodic runs of one backup type.
type Schedule struct {
	Type     string `mapstructure:"type"`
	Strategy string `mapstructure:"strategy"`
	CronSpec string `mapstructure:"cron_spec"`
	Storage  string `mapstructure:"storage"`
}

func LoadSchedules(v *viper.Viper) ([]Schedule, error) {
	var schedules []Schedule

	err := v.UnmarshalKey("schedules", &schedules)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to unmarshal schedules")
	}

	return schedules, nil
}

func NewCron() *cron.Cron {
	return cron.New()
}

type Scheduler struct {
	logger    logrus.FieldLogger
	service   *domain.BackupService
	transfers *transfer.Manager
	manifests *storage.ManifestStore
	schedules []Schedule
	cron      *cron.Cron
}

func NewScheduler(
	logger *logrus.Logger,
	service *domain.BackupService,
	transfers *transfer.Manager,
	manifests *storage.ManifestStore,
	schedules []Schedule,
	c *cron.Cron,
) *Scheduler {
	return &Scheduler{
		logger:    logger,
		service:   service,
		transfers: transfers,
		manifests: manifests,
		schedules: schedules,
		cron:      c,
	}
}

func (s *Scheduler) Start() error {
	for _, schedule := range s.schedules {
		schedule := schedule

		strategy, err := domain.ParseStrategy(schedule.Strategy)
		if err != nil {
			return errors.Wrapf(err, "schedule for backup type %q", schedule.Type)
		}

		err = s.cron.AddFunc(schedule.CronSpec, func() {
			s.runScheduled(schedule, strategy)
		})
		if err != nil {
			return errors.Wrapf(err, "invalid cron spec %q for backup type %q", schedule.CronSpec, schedule.Type)
		}
	}

	s.logger.WithField("schedules", len(s.schedules)).Debug("Starting cron")
	s.cron.Start()

	return nil
}

func (s *Scheduler) runScheduled(schedule Schedule, strategy domain.Strategy) {
	logger := s.logger.WithFields(logrus.Fields{
		"backup_type": schedule.Type,
		"strategy":    strategy.String(),
	})

	logger.Info("Dispatching scheduled run")

	handle, err := s.service.StartRun(context.Background(), schedule.Type, strategy)
	if err != nil {
		logger.WithError(err).Error("Unable to start scheduled run")
		return
	}

	run, err := handle.Wait()
	if err != nil {
		logger.WithError(err).Error("Scheduled run failed")
		return
	}

	if schedule.Storage == "" {
		return
	}

	target, err := s.transfers.Transfer(schedule.Storage, run, s.manifests.RunDirectory(run.BackupType, run.Id))
	if err != nil {
		logger.WithError(err).Error("Unable to export run archive")
		return
	}

	logger.WithField("archive", target).Info("Run archive exported")
}

func RunScheduler(lc fx.Lifecycle, scheduler *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start()
		},
	})
}
