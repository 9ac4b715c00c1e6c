package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/probviz/probviz/go/httputils"
	"github.com/probviz/probviz/go/sklog"
	"github.com/probviz/probviz/traceviz/go/types"
)

// initializeRequest is the body of POST /_/initialize/{id}.
type initializeRequest struct {
	Info   types.Info             `json:"info"`
	Traces map[string]types.Trace `json:"traces"`
}

// putTraceRequest is the body of POST /_/putTrace/{id}.
type putTraceRequest struct {
	TraceID string      `json:"tId"`
	Trace   types.Trace `json:"t"`
}

// removeTraceRequest is the body of POST /_/removeTrace/{id}.
type removeTraceRequest struct {
	TraceID string `json:"tId"`
}

func (s *Server) initializeHandler(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.ReportError(w, err, "Invalid initialize request.", http.StatusBadRequest)
		return
	}
	s.Viz(chi.URLParam(r, "id")).Initialize(req.Info, req.Traces)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) putTraceHandler(w http.ResponseWriter, r *http.Request) {
	var req putTraceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.ReportError(w, err, "Invalid putTrace request.", http.StatusBadRequest)
		return
	}
	if req.TraceID == "" {
		httputils.ReportError(w, nil, "A trace id is required.", http.StatusBadRequest)
		return
	}
	s.Viz(chi.URLParam(r, "id")).PutTrace(req.TraceID, req.Trace)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) removeTraceHandler(w http.ResponseWriter, r *http.Request) {
	var req removeTraceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.ReportError(w, err, "Invalid removeTrace request.", http.StatusBadRequest)
		return
	}
	if req.TraceID == "" {
		httputils.ReportError(w, nil, "A trace id is required.", http.StatusBadRequest)
		return
	}
	s.Viz(chi.URLParam(r, "id")).RemoveTrace(req.TraceID)
	w.WriteHeader(http.StatusOK)
}

// saveHTMLHandler asks the viz's connected viewers for a snapshot and
// responds with the first reply as text/html.
func (s *Server) saveHTMLHandler(w http.ResponseWriter, r *http.Request) {
	vizID := chi.URLParam(r, "id")
	content, err := s.Viz(vizID).SaveHTML(r.Context())
	if err != nil {
		httputils.ReportError(w, err, "Failed to capture a snapshot.", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write([]byte(content)); err != nil {
		sklog.Errorf("viz %s: writing snapshot response: %s", vizID, err)
	}
}
