package observability

import (
	"net"
	"net/http"
	"strings"

	"geochat-service/internal/logging"
)

func RequestIDFromRequest(r *http.Request) string {
	if id := logging.RequestID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(logging.HeaderRequestID)
}

func IPFromRequest(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
