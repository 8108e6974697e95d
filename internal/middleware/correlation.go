package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type correlationIDKey struct{}

var correlationKey = correlationIDKey{}

// correlationHeaders are the inbound headers honoured for an existing
// correlation identifier, in precedence order.
var correlationHeaders = []string{"X-Correlation-ID", "X-Request-ID"}

// CorrelationID tags every request with a correlation identifier so a booking
// can be followed from the HTTP edge through notifications and outbound mail.
// An identifier supplied by the caller is kept; otherwise one is minted.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		for _, header := range correlationHeaders {
			if id = strings.TrimSpace(c.Get(header)); id != "" {
				break
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals("correlation_id", id)
		c.Set("X-Correlation-ID", id)
		c.SetUserContext(context.WithValue(c.Context(), correlationKey, id))

		return c.Next()
	}
}

// CorrelationIDFromContext reads the correlation identifier off a context,
// returning "" when none was attached.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// GetCorrelationID returns the identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals("correlation_id").(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.Context())
}

// ContextWithCorrelation attaches a correlation identifier to ctx, for code
// paths that leave the request goroutine (mail retries, broker publishes).
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey, correlationID)
}
