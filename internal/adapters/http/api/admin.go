package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/klapi/internal/domain/model"
)

const defaultLogLimit = 100

type dateRequest struct {
	// Date is YYYY-MM-DD or an English relative expression such as
	// "next saturday".
	Date string `json:"date"`
}

type resultsRequest struct {
	Date   string       `json:"date,omitempty"`
	Rounds model.Rounds `json:"rounds"`
}

type playerRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Bio    string `json:"bio,omitempty"`
}

type postRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// date resolves admin input against the league clock. Blank input is today.
func (s *Server) date(input string) (model.Date, error) {
	now := s.league.Now()
	if strings.TrimSpace(input) == "" {
		return model.DateOf(now), nil
	}
	return s.parser.Parse(input, now)
}

func (s *Server) handleAddPlanned(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_planned"
	var req dateRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	d, err := s.date(req.Date)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	g, err := s.league.AddPlanned(r.Context(), d)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleRecordResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_results"
	var req resultsRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	d, err := s.date(req.Date)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	g, err := s.league.RecordResults(r.Context(), d, req.Rounds)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleRecordResultsFor(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_results_for"
	var req resultsRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	g, err := s.league.RecordResultsFor(r.Context(), chi.URLParam(r, "id"), req.Rounds)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleEditEventDate(w http.ResponseWriter, r *http.Request) {
	const op = "api.edit_event_date"
	var req dateRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	d, err := s.date(req.Date)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	g, err := s.league.EditEventDate(r.Context(), chi.URLParam(r, "id"), d)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.league.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, "api.delete_event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_player"
	var req playerRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	p, err := s.league.AddPlayer(r.Context(), req.Name, req.Avatar, req.Bio)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_player"
	var req playerRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	p, err := s.league.UpdatePlayer(r.Context(), model.Player{
		ID: chi.URLParam(r, "id"), Name: req.Name, Avatar: req.Avatar, Bio: req.Bio,
	})
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.league.DeletePlayer(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, "api.delete_player", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddPost(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_post"
	var req postRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	p, err := s.league.AddPost(r.Context(), req.Title, req.Body, AdminFrom(r.Context()))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.league.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, "api.delete_post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	const op = "api.logs"
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, r, op, NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.league.Logs(limit))
}
