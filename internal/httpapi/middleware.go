package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/openlets/openlets/internal/ledger"
)

// Identity headers set by the gateway in front of the API.
const (
	HeaderPersonID = "X-Person-ID"
	HeaderSiteID   = "X-Site-ID"
)

type actorKey struct{}

// RequestLogger logs one line per request through zap.
func RequestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr))
		})
	}
}

// requireActor resolves the caller from the identity headers and rejects
// requests without a valid person id.
func (h *handler) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(HeaderPersonID)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing "+HeaderPersonID+" header")
			return
		}
		personID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || personID <= 0 {
			writeError(w, http.StatusUnauthorized, "invalid "+HeaderPersonID+" header")
			return
		}

		siteID, ok := h.siteFrom(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid "+HeaderSiteID+" header")
			return
		}

		actor := ledger.Actor{PersonID: personID, SiteID: siteID}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

// siteFrom returns the X-Site-ID header, or the default site when the
// header is absent.
func (h *handler) siteFrom(r *http.Request) (int64, bool) {
	raw := r.Header.Get(HeaderSiteID)
	if raw == "" {
		return h.defaultSiteID, true
	}
	siteID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || siteID <= 0 {
		return 0, false
	}
	return siteID, true
}

func actorFrom(ctx context.Context) ledger.Actor {
	a, _ := ctx.Value(actorKey{}).(ledger.Actor)
	return a
}
