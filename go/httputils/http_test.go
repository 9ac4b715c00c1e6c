package httputils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportError_WritesMessageAndCode(t *testing.T) {
	w := httptest.NewRecorder()
	ReportError(w, errors.New("boom"), "Something failed.", http.StatusInternalServerError)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Something failed.")
}

func TestReportError_EmptyMessage_WritesPlaceholder(t *testing.T) {
	w := httptest.NewRecorder()
	ReportError(w, errors.New("boom"), "", http.StatusBadRequest)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Unknown error")
}

func TestHealthz_InterceptsHealthzOnly(t *testing.T) {
	h := Healthz(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/other", nil))
	require.Equal(t, http.StatusTeapot, w.Code)
}

func TestLoggingRequestResponse_RecoversPanics(t *testing.T) {
	h := LoggingRequestResponse(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler blew up")
	}))
	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
