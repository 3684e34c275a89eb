package sync

import (
	"context"

	"github.com/iudanet/statesync/internal/client/api"
	"github.com/iudanet/statesync/internal/client/capture"
	"github.com/iudanet/statesync/internal/merge"
	"github.com/iudanet/statesync/internal/models"
	pkgapi "github.com/iudanet/statesync/pkg/api"
)

//go:generate moq -out gateway_mock.go . RemoteGateway

// RemoteGateway - сетевой доступ к удалённому хранилищу снапшотов
type RemoteGateway interface {
	// Push отправляет снапшот; отклоняется, если Version не совпадает с версией сервера
	Push(ctx context.Context, snap *models.Snapshot) (*api.PushResult, error)

	// Pull безусловно получает текущий снапшот сервера
	Pull(ctx context.Context) (*models.Snapshot, error)

	// Subscribe доставляет уведомления об изменениях до отмены ctx
	Subscribe(ctx context.Context, handler func(pkgapi.ChangeEvent)) error
}

// StateCapture собирает и восстанавливает состояние приложения
type StateCapture interface {
	Capture() (*models.Snapshot, error)
	Restore(snap *models.Snapshot) *capture.RestoreResult
	Last() *models.Snapshot
	DeviceID() string
}

// ConflictResolver сливает локальный и удалённый снапшоты относительно общего предка
type ConflictResolver interface {
	MergeWithBase(base, local, remote *models.Snapshot) merge.Result
}

var (
	_ RemoteGateway    = (*api.Client)(nil)
	_ StateCapture     = (*capture.Capture)(nil)
	_ ConflictResolver = (*merge.Resolver)(nil)
)
