package daemon

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/kata/internal/document"
	"github.com/felixgeelhaar/kata/internal/notify"
	"github.com/felixgeelhaar/kata/internal/session"
)

// DocumentState is the document as the daemon sees it.
type DocumentState struct {
	URI      string `json:"uri"`
	Language string `json:"language"`
	Version  int    `json:"version"`
	Text     string `json:"text"`
}

// ActionRequest runs one action. Topic and Difficulty are used by
// "Start Practice", Selection by "Explain Selection".
type ActionRequest struct {
	Action     string            `json:"action"`
	Selection  session.Selection `json:"selection"`
	Topic      string            `json:"topic,omitempty"`
	Difficulty string            `json:"difficulty,omitempty"`
}

// ActionResponse is returned by every mutating endpoint.
type ActionResponse struct {
	OK       bool             `json:"ok"`
	Error    string           `json:"error,omitempty"`
	Flags    session.Flags    `json:"flags"`
	Messages []notify.Message `json:"messages"`
	Document DocumentState    `json:"document"`
}

// EditRequest is one learner edit.
type EditRequest struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Text   string `json:"text"`
}

// ChangesRequest mirrors learner edits made in the editor. BaseVersion,
// when set, must match the daemon's document version.
type ChangesRequest struct {
	BaseVersion *int          `json:"base_version,omitempty"`
	Edits       []EditRequest `json:"edits"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":   s.cfg.Version,
		"providers": s.cfg.Providers,
		"session":   s.cfg.Session.Status(),
		"context":   s.cfg.Context.Snapshot(),
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.documentState())
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, map[string]any{"messages": s.cfg.Journal.Recent(n)})
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var sel session.Selection
	sel.Offset, _ = strconv.Atoi(q.Get("offset"))
	sel.Length, _ = strconv.Atoi(q.Get("length"))

	writeJSON(w, http.StatusOK, map[string]any{
		"actions":  s.cfg.Session.Actions(sel),
		"commands": session.Commands,
		"flags":    s.cfg.Session.Flags(),
	})
}

func (s *Server) handleDoAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	s.respond(w, r, func() error {
		if session.Action(req.Action) == session.ActionStart {
			return s.cfg.Session.StartWith(r.Context(), req.Topic, req.Difficulty)
		}
		return s.cfg.Session.Do(r.Context(), session.Action(req.Action), req.Selection)
	})
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	var req ChangesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	edits := make([]document.Edit, len(req.Edits))
	for i, e := range req.Edits {
		edits[i] = document.Edit{Offset: e.Offset, Length: e.Length, Text: e.Text}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := -1
	if req.BaseVersion != nil {
		base = *req.BaseVersion
	}

	// applied outside the guard: these are the learner's own edits
	err := s.cfg.Document.ApplyAt(r.Context(), base, edits...)
	if err == nil && base >= 0 && len(edits) == 0 && base != s.cfg.Document.Version() {
		err = document.ErrStale
	}
	switch {
	case errors.Is(err, document.ErrStale):
		writeJSON(w, http.StatusConflict, ActionResponse{
			Error:    "document version mismatch",
			Flags:    s.cfg.Session.Flags(),
			Messages: []notify.Message{},
			Document: s.documentState(),
		})
		return
	case errors.Is(err, document.ErrInvalidEdit):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ActionResponse{
		OK:       true,
		Flags:    s.cfg.Session.Flags(),
		Messages: []notify.Message{},
		Document: s.documentState(),
	})
}

var timerOps = map[string]session.Action{
	"start":  session.ActionStartTimer,
	"pause":  session.ActionPauseTimer,
	"resume": session.ActionResumeTimer,
	"reset":  session.ActionResetTimer,
	"stop":   session.ActionStopTimer,
}

func (s *Server) handleTimer(w http.ResponseWriter, r *http.Request) {
	action, ok := timerOps[chi.URLParam(r, "op")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown timer operation")
		return
	}

	mark := s.cfg.Journal.Mark()
	s.cfg.Session.Timer(action)
	tracker := s.cfg.Session.Tracker()
	writeJSON(w, http.StatusOK, map[string]any{
		"elapsed":  tracker.Formatted(),
		"running":  tracker.IsActive(),
		"messages": s.cfg.Journal.Since(mark),
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func() error {
		return s.cfg.Session.Run(r.Context())
	})
}

// respond runs fn under the server lock and reports its outcome with the
// messages it produced.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, fn func() error) {
	s.mu.Lock()
	mark := s.cfg.Journal.Mark()
	err := fn()
	resp := ActionResponse{
		OK:       err == nil,
		Flags:    s.cfg.Session.Flags(),
		Messages: s.cfg.Journal.Since(mark),
		Document: s.documentState(),
	}
	s.mu.Unlock()

	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
		slog.Debug("action failed", "request_id", RequestID(r.Context()), "error", err)
	}
	writeJSON(w, status, resp)
}

func (s *Server) documentState() DocumentState {
	doc := s.cfg.Document
	return DocumentState{
		URI:      doc.URI(),
		Language: doc.LanguageID(),
		Version:  doc.Version(),
		Text:     doc.Text(),
	}
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUnknownAction), errors.Is(err, session.ErrCancelled):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrPrecondition),
		errors.Is(err, session.ErrAlreadyRevealed),
		errors.Is(err, session.ErrBlockNotFound),
		errors.Is(err, session.ErrNoActiveDocument):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnsupportedLanguage), errors.Is(err, session.ErrRunFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrGeneration):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "status": status})
}
