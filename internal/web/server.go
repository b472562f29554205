// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/pdflens/internal/extract"
	"github.com/pdflens/internal/logger"
	"github.com/pdflens/internal/view"
)

//go:embed ui/*
var uiFiles embed.FS

// ViewHeader carries the view ID of the page making the request. Every response echoes it.
const ViewHeader = "X-Pdflens-View"

// ViewParam is the query fallback for clients that cannot set headers (websockets)
const ViewParam = "view"

// ViewCookie holds the view of the most recently loaded page, for clients that send no ID
const ViewCookie = "pdflens_view"

// PageTitle is shown in the browser tab and page header
const PageTitle = "PDF Text and Coordinates Extractor"

var indexTmpl = template.Must(template.ParseFS(uiFiles, "ui/index.html"))

// Server handles the web UI and API
type Server struct {
	ctx        context.Context
	sessions   *view.Sessions
	loader     *extract.Loader
	engineName string
}

// NewServer creates a new web server instance. ctx ends open websocket pushes on shutdown.
func NewServer(ctx context.Context, sessions *view.Sessions, loader *extract.Loader, engineName string) *Server {
	return &Server{
		ctx:        ctx,
		sessions:   sessions,
		loader:     loader,
		engineName: engineName,
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(uiFiles, "ui/static")
	if err != nil {
		logger.Errorf("Failed to create sub filesystem: %v", err)
	} else {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/extract", s.handleExtract)
	mux.HandleFunc("/api/records", s.handleRecords)
	mux.HandleFunc("/api/table", s.handleTable)
	mux.HandleFunc("/api/error/dismiss", s.handleDismiss)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	return TrafficLogger(mux)
}

// requestedView returns the view ID named by header, query or cookie, in that order
func requestedView(r *http.Request) string {
	if id := r.Header.Get(ViewHeader); id != "" {
		return id
	}
	if id := r.URL.Query().Get(ViewParam); id != "" {
		return id
	}
	if c, err := r.Cookie(ViewCookie); err == nil {
		return c.Value
	}
	return ""
}

// view resolves the caller's view, issuing a cookie for a new one
func (s *Server) view(w http.ResponseWriter, r *http.Request) (string, *view.Controller) {
	id, ctrl, created := s.sessions.GetOrCreate(requestedView(r))
	if created {
		http.SetCookie(w, viewCookie(id))
	}
	w.Header().Set(ViewHeader, id)
	return id, ctrl
}

func viewCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     ViewCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleIndex serves a page bound to a new view, so every tab or reload starts empty
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ctrl, _ := s.sessions.GetOrCreate("")
	http.SetCookie(w, viewCookie(id))
	w.Header().Set(ViewHeader, id)
	snap := ctrl.Presenter().Snapshot()

	table, err := view.TableHTML(snap.Records)
	if err != nil {
		logger.Errorf("Failed to render table: %v", err)
		http.Error(w, "Failed to render table", http.StatusInternalServerError)
		return
	}

	data := struct {
		Title  string
		Accept string
		ViewID string
		Table  template.HTML
		Error  *view.Failure
	}{PageTitle, extract.PDFMediaType, id, table, snap.Error}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		logger.Errorf("Template execution error: %v", err)
	}
}

// handleExtract handles POST /api/extract: read the selected file, then hand it to the view's pipeline.
// With ?wait=true the response carries the finished records instead of 202.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	_, ctrl := s.view(w, r)

	up, err := s.loader.FromRequest(w, r)
	if err != nil {
		if errors.Is(err, extract.ErrNoFile) {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		ctrl.Fail(up.Name, err)
		switch {
		case errors.Is(err, extract.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, extract.ErrNotPDF):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	task := ctrl.Submit(up)

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"status":     "accepted",
			"file":       up.Name,
			"generation": task.Gen,
		})
		return
	}

	records, err := task.Wait(r.Context())
	switch {
	case errors.Is(err, view.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"file":    up.Name,
			"records": records,
			"count":   len(records),
		})
	}
}

// handleRecords returns the view's current snapshot
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	_, ctrl := s.view(w, r)
	writeJSON(w, http.StatusOK, ctrl.Presenter().Snapshot())
}

// handleTable returns the rendered table fragment
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, ctrl := s.view(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.RenderTable(w, ctrl.Presenter().Records()); err != nil {
		logger.Errorf("Failed to render table: %v", err)
	}
}

// handleDismiss clears the error indicator
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	_, ctrl := s.view(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"dismissed": ctrl.Presenter().DismissError()})
}

// handleHealth handles GET /api/v1/health requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "up",
		"engine": s.engineName,
		"views":  s.sessions.Len(),
	})
}
