package middleware

import "context"

type holderKey struct{}

var accountHolderKey = holderKey{}

// accountHolder переносит аккаунт из внутренних middleware во внешние
type accountHolder struct {
	accountID string
}

func withAccountHolder(ctx context.Context, h *accountHolder) context.Context {
	return context.WithValue(ctx, accountHolderKey, h)
}
