// Package correlation carries the id that ties one logical operation together
// across request logs, audit entries and provider callbacks.
package correlation

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"
)

// Header is the inbound and echoed HTTP header.
const Header = "X-Correlation-Id"

const maxLength = 128

type key struct{}

type value struct {
	id        string
	generated bool
}

// FromContext returns the correlation id on ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key{}).(value); ok {
		return v.id
	}
	return ""
}

// WithID binds a caller-supplied id. Blank or malformed ids leave ctx as is.
func WithID(ctx context.Context, id string) context.Context {
	id = sanitize(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, key{}, value{id: id})
}

// FromHeader reads the inbound id from h, dropping values that are too long
// or carry control characters.
func FromHeader(h http.Header) string {
	return sanitize(h.Get(Header))
}

// Ensure returns ctx with a correlation id, generating a ULID when none is
// bound.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return context.WithValue(ctx, key{}, value{id: id, generated: true}), id
}

// ForEvent adopts a provider event id as the correlation id, so every log
// line for a redelivered event shares it. An id supplied by the caller wins
// over the event id; a generated one does not.
func ForEvent(ctx context.Context, source, eventID string) (context.Context, string) {
	if v, ok := ctx.Value(key{}).(value); ok && !v.generated {
		return ctx, v.id
	}
	id := sanitize(source + ":" + eventID)
	if eventID == "" || id == "" {
		return Ensure(ctx)
	}
	return context.WithValue(ctx, key{}, value{id: id}), id
}

func sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxLength {
		return ""
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return ""
		}
	}
	return id
}
