// Package httputils provides shared HTTP helpers for the servers in this
// repository.
package httputils

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"runtime"
	"strconv"

	"github.com/fiorix/go-web/autogzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/probviz/probviz/go/skerr"
	"github.com/probviz/probviz/go/sklog"
)

var responseCodes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_response",
	Help: "HTTP responses by status code.",
}, []string{"statuscode"})

// HealthCheckHandler returns 200 OK with an empty body, appropriate
// for a healthcheck endpoint.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
}

// ReportError formats an HTTP error response and also logs the detailed error
// message. The message is returned to the caller, the err is logged.
func ReportError(w http.ResponseWriter, err error, message string, code int) {
	sklog.Error(message, err)
	if err != io.ErrClosedPipe {
		httpErrMsg := message
		if message == "" {
			httpErrMsg = "Unknown error"
		}
		http.Error(w, httpErrMsg, code)
	}
}

// responseProxy implements http.ResponseWriter and records the status codes.
type responseProxy struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rp *responseProxy) WriteHeader(code int) {
	if !rp.wroteHeader {
		sklog.Infof("Response Code: %d", code)
		responseCodes.WithLabelValues(strconv.Itoa(code)).Inc()
		rp.wroteHeader = true
	}
	rp.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher.
func (rp *responseProxy) Flush() {
	if f, ok := rp.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker, needed for websocket upgrades to pass
// through the middleware.
func (rp *responseProxy) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rp.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, skerr.Fmt("underlying ResponseWriter is not an http.Hijacker")
}

// Unwrap lets http.ResponseController reach the underlying ResponseWriter.
func (rp *responseProxy) Unwrap() http.ResponseWriter {
	return rp.ResponseWriter
}

// recordResponse returns a wrapped http.Handler that records the status codes
// of the responses.
func recordResponse(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(&responseProxy{ResponseWriter: w}, r)
	})
}

// LoggingGzipRequestResponse records parts of the request and the response to
// the logs and gzips responses when appropriate.
func LoggingGzipRequestResponse(h http.Handler) http.Handler {
	return autogzip.Handle(LoggingRequestResponse(h))
}

// LoggingRequestResponse records parts of the request and the response to the logs.
func LoggingRequestResponse(h http.Handler) http.Handler {
	// Closure to capture the request.
	f := func(w http.ResponseWriter, r *http.Request) {
		sklog.Infof("Incoming request: %s %s %#v ", r.URL.Path, r.Method, *(r.URL))
		defer func() {
			if err := recover(); err != nil {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]
				sklog.Errorf("panic serving %v: %v\n%s", r.URL.Path, err, buf)

				// Note: This will only change the response if WriteHeader has
				// not been called yet.
				http.Error(w, "Error Handling request", http.StatusInternalServerError)
			}
		}()
		h.ServeHTTP(w, r)
	}

	return recordResponse(http.HandlerFunc(f))
}

// Healthz handles healthchecks at /healthz.
//
// Example:
//
//	if !*local {
//	  h := httputils.Healthz(h)
//	}
//	http.Handle("/", h)
func Healthz(h http.Handler) http.Handler {
	s := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(s)
}
