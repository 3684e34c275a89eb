package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/statesync/internal/server/auth"
)

// TokenValidator проверяет bearer-токен
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена.
// Идентификатор аккаунта из токена кладется в контекст запроса (auth.AccountID).
func AuthMiddleware(logger *slog.Logger, validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				logger.Warn("Invalid Authorization header format")
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token format")
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			logger.Debug("Account authenticated", "account_id", claims.AccountID(), "device_id", claims.DeviceID)

			ctx := auth.WithAccountID(r.Context(), claims.AccountID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
