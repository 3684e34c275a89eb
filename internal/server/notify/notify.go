// Package notify рассылает подписчикам аккаунта уведомления о новых версиях снапшота.
// Доставка best effort: медленный подписчик теряет события, а не блокирует push.
package notify

import (
	"context"

	"github.com/iudanet/statesync/pkg/api"
)

// Notifier публикует и раздаёт события изменений
type Notifier interface {
	// Publish сообщает подписчикам аккаунта о новой версии
	Publish(ctx context.Context, accountID string, event api.ChangeEvent) error

	// Subscribe возвращает канал событий аккаунта и функцию отписки
	Subscribe(accountID string) (<-chan api.ChangeEvent, func())
}
