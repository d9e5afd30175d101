package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"veriledger/pkg/domain"
)

// CallerValidator validates a bearer token into a caller identity.
type CallerValidator interface {
	ExtractCaller(tokenString string) (domain.InvestorID, error)
}

type contextKeyCaller struct{}

// ContextKeyCaller is exported for use in handlers.
var ContextKeyCaller = contextKeyCaller{}

// GetCaller retrieves the authenticated caller identity from the context.
func GetCaller(ctx context.Context) domain.InvestorID {
	caller, ok := ctx.Value(ContextKeyCaller).(domain.InvestorID)
	if !ok {
		return ""
	}
	return caller
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller identity in the request context.
func RequireAuth(validator CallerValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}
			caller, err := validator.ExtractCaller(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			ctx = context.WithValue(ctx, ContextKeyCaller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + desc + `"}`))
}
