package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/audiolens-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
	headerSessionID = "X-Session-Id"
)

// AttachTraceContext stores request, trace and session ids on the request
// context and echoes them back as response headers. The session id comes
// from X-Session-Id or the session query parameter and is dropped unless it
// is a UUID.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			RequestID: strings.TrimSpace(c.GetHeader(headerRequestID)),
			TraceID:   spanTraceID(c),
			SessionID: sessionID(c),
		}
		if td.RequestID == "" {
			td.RequestID = uuid.NewString()
		}
		if td.TraceID == "" {
			td.TraceID = uuid.NewString()
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Set("trace_id", td.TraceID)
		c.Set("request_id", td.RequestID)
		h := c.Writer.Header()
		h.Set(headerTraceID, td.TraceID)
		h.Set(headerRequestID, td.RequestID)
		if td.SessionID != "" {
			h.Set(headerSessionID, td.SessionID)
		}
		c.Next()
	}
}

// spanTraceID prefers the active span (otelgin runs first) over the header.
func spanTraceID(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return strings.TrimSpace(c.GetHeader(headerTraceID))
}

func sessionID(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(headerSessionID))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("session"))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return ""
	}
	return id.String()
}
