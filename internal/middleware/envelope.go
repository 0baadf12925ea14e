// Package middleware provides HTTP middleware for the demo user service.
package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Envelope wraps successful JSON responses under the given path prefix in a
// {"success": true, "data": ...} object. Only responses declaring a JSON
// content type are touched; file streams and other non-JSON bodies pass
// through byte for byte. Responses that already carry a "success" key are
// left alone. Error responses are written pre-wrapped by the handlers.
func Envelope(prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}

			buf := &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(buf, r)
			buf.flush()
		})
	}
}

// bufferedWriter captures the full response body so it can be rewrapped
// before anything reaches the client.
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (bw *bufferedWriter) WriteHeader(code int) {
	bw.status = code
}

func (bw *bufferedWriter) Write(b []byte) (int, error) {
	return bw.body.Write(b)
}

func (bw *bufferedWriter) flush() {
	body := bw.body.Bytes()

	if isJSONContentType(bw.Header().Get("Content-Type")) {
		if out, wrapped := wrapBody(body); wrapped {
			body = out
			bw.Header().Set("Content-Length", strconv.Itoa(len(body)))
		}
	}
	bw.ResponseWriter.WriteHeader(bw.status)
	if len(body) > 0 {
		bw.ResponseWriter.Write(body)
	}
}

func isJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "application/json")
}

// wrapBody returns the body to send and whether it was rewritten. The caller
// has already established the body is declared as JSON; a body that still
// fails to parse is exposed as a raw string data value.
func wrapBody(body []byte) ([]byte, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return body, false
	}

	var payload interface{}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		payload = string(trimmed)
	}

	if obj, ok := payload.(map[string]interface{}); ok {
		if _, exists := obj["success"]; exists {
			return body, false
		}
	}

	out, err := json.Marshal(map[string]interface{}{
		"success": true,
		"data":    payload,
	})
	if err != nil {
		return body, false
	}
	return out, true
}
