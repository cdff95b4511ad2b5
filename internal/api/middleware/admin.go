package middleware

import (
	"context"
	"net/http"
	"strings"

	"serotonyl.ru/rewards-engine/internal/api/response"
	"serotonyl.ru/rewards-engine/internal/features/admin"
)

// Authenticator проверяет токен админской сессии.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*admin.AdminSession, error)
}

// AdminAuth пускает только запросы с действующим токеном
// в заголовке Authorization: Bearer <token>.
func AdminAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				response.Error(w, http.StatusUnauthorized, "требуется авторизация администратора")
				return
			}

			session, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				response.FromError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom возвращает админскую сессию, установленную AdminAuth.
func SessionFrom(ctx context.Context) (*admin.AdminSession, bool) {
	s, ok := ctx.Value(sessionKey).(*admin.AdminSession)
	return s, ok
}
