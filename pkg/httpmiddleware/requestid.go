package httpmiddleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

type requestIDKey struct{}

// WithRequestID returns ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id of ctx, empty when unset.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID keeps the host's X-Request-ID so a storefront page render and
// the calls it triggers share one id; otherwise it generates a UUID. The id
// is echoed on the response, stored in the context and recorded on the
// current span.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := incomingRequestID(r.Header)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := WithRequestID(r.Context(), id)
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.request.id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// incomingRequestID returns the caller's id when it is 1 to 128 bytes of
// printable ASCII, empty otherwise.
func incomingRequestID(h http.Header) string {
	id := h.Get(requestIDHeader)
	if id == "" || len(id) > maxRequestIDLen {
		return ""
	}
	if strings.ContainsFunc(id, func(c rune) bool { return c < 0x20 || c > 0x7e }) {
		return ""
	}
	return id
}
