package server

import (
	"log"
	"net/http"
	"time"
)

// requestLogMiddleware logs each request's method, path, status, size
// and duration. WebSocket upgrades are skipped: the hub owns their
// lifecycle logging and the hijacked connection outlives the request.
func requestLogMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}

			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapper, r)

			log.Printf("%s %s %d %dB %v", r.Method, r.URL.Path, wrapper.statusCode,
				wrapper.bytesWritten, time.Since(start).Round(time.Microsecond))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and
// response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
