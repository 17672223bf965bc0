package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
	"github.com/vogiaan1904/trafficroom/pkg/response"
)

// ChatClaims identify the chat user on whose behalf the gateway calls us.
type ChatClaims struct {
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	Username string `json:"username" validate:"max=64"`
	ChatID   int64  `json:"chat_id" validate:"required,ne=0"`
	jwt.RegisteredClaims
}

type claimsCtxKey struct{}

func claimsFromContext(ctx context.Context) (ChatClaims, bool) {
	c, ok := ctx.Value(claimsCtxKey{}).(ChatClaims)
	return c, ok
}

// Authenticate verifies the HS256 bearer token and stores its claims on the
// request context.
func Authenticate(secret []byte, v *validator.Validate, l logger.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				response.Error(w, errUnauthorized)
				return
			}

			var claims ChatClaims
			if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
				return secret, nil
			}); err != nil {
				l.Debugf(r.Context(), "delivery.http.Authenticate: %v", err)
				response.Error(w, errUnauthorized)
				return
			}

			if err := v.Struct(claims); err != nil {
				l.Debugf(r.Context(), "delivery.http.Authenticate: %v", err)
				response.Error(w, errInvalidClaims)
				return
			}

			ctx := l.With(r.Context(), "user_id", claims.UserID)
			ctx = context.WithValue(ctx, claimsCtxKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
