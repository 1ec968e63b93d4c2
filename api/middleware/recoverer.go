package middleware

import (
	"fmt"
	"net/http"

	"github.com/stockline-hq/stockline-backend/api/responses"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
)

// Recoverer turns handler panics into 500 responses instead of killing
// the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer recoverPanic(w, r, logg)
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

func recoverPanic(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	rec := recover()
	if rec == nil {
		return
	}
	err := fmt.Errorf("panic: %v", rec)
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"panic":  rec,
			"method": r.Method,
			"path":   r.URL.Path,
		})
		logg.Error(ctx, "panic recovered while serving request", err)
	}
	responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
}
