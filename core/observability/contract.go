package observability

import (
	"strings"
)

const (
	AttrTraceID          = "trace_id"
	AttrSpanID           = "span_id"
	AttrDialect          = "db.dialect"
	AttrGatewayBackend   = "gateway.backend"
	AttrGatewayOperation = "gateway.operation"
	AttrQueryType        = "query.type"
	AttrWorkspaceID      = "workspace.id"
	AttrConnectionID     = "connection.id"
	AttrScheduledQueryID = "scheduled_query.id"
	AttrRunStatus        = "run.status"
	AttrHTTPMethod       = "http.request.method"
	AttrHTTPRoute        = "http.route"
	AttrHTTPStatusCode   = "http.response.status_code"
	AttrErrorType        = "error.type"
)

var secretKeySubstrings = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"connection_string",
	"connectionurl",
	"credentials",
	"dsn",
}

// RedactAttributeValue masks values for known-sensitive attribute keys.
func RedactAttributeValue(key string, value string) string {
	lower := strings.ToLower(key)
	for _, needle := range secretKeySubstrings {
		if strings.Contains(lower, needle) {
			return "[REDACTED]"
		}
	}
	return value
}

// RedactMap returns a copy of values with sensitive keys masked, suitable
// for logging connection info.
func RedactMap(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			out[k] = RedactAttributeValue(k, s)
			continue
		}
		if RedactAttributeValue(k, "") != "" {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}
