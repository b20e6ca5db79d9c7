package domainfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(LoadItems),
	fx.Provide(LoadSchedules),
	fx.Provide(BackupTypes),
	fx.Provide(NewCron),
	fx.Provide(ServiceConfigProvider),
	fx.Provide(Manifests),
	fx.Provide(Notifier),
	fx.Provide(TransferManager),
	fx.Provide(BackupService),
	fx.Provide(NewScheduler),
	fx.Invoke(RunScheduler),
)
