package domainfx

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/backsnap/backsnap/pkg/domain"
	"github.com/backsnap/backsnap/pkg/notify"
	"github.com/backsnap/backsnap/pkg/storage"
	"github.com/backsnap/backsnap/pkg/transfer"
)

func Manifests(v *viper.Viper) (*storage.ManifestStore, domain.ManifestStore, error) {
	root := v.GetString(ConfigDestinationRoot)
	if root == "" {
		return nil, nil, errors.New("destination.root must be configured")
	}

	store := storage.NewManifestStore(root)

	return store, store, nil
}

func Notifier(logger *logrus.Logger) domain.Notifier {
	return notify.NewLogNotifier(logger)
}

func TransferManager(v *viper.Viper) *transfer.Manager {
	mounts := make(map[string]transfer.Mount)

	if dir := v.GetString(ConfigDestinationArchive); dir != "" {
		mounts["local"] = transfer.NewLocalMount(dir)
	}

	return transfer.NewManager(mounts)
}

func BackupService(
	logger *logrus.Logger,
	items []domain.Item,
	ledger domain.RunLedger,
	manifests domain.ManifestStore,
	notifier domain.Notifier,
	config domain.ServiceConfig,
) *domain.BackupService {
	return domain.NewBackupService(logger, items, ledger, manifests, domain.LocalTransfer{}, notifier, config)
}
