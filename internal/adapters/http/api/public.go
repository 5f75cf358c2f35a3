package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/klapi/internal/domain/calendar"
	"github.com/okian/klapi/internal/domain/form"
	"github.com/okian/klapi/internal/domain/model"
)

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.league.Home())
}

func (s *Server) handleStandings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.league.Standings())
}

func (s *Server) handlePlayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.league.Players())
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	page, err := s.league.Player(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "api.get_player", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleEvents lists events, optionally filtered by ?status=planned|played.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	events := s.league.Events()
	status := model.Status(r.URL.Query().Get("status"))
	switch status {
	case "":
	case model.StatusPlanned, model.StatusPlayed:
		out := events[:0:0]
		for _, g := range events {
			if g.Status == status {
				out = append(out, g)
			}
		}
		events = out
	default:
		s.fail(w, r, op, NewKind(op, ErrBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	page, err := s.league.Event(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "api.get_event", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type calendarResponse struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Cells []calendar.Cell `json:"cells"`
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	year, month, err := calendar.ParseMonth(r.URL.Query().Get("month"), s.league.Now())
	if err != nil {
		s.fail(w, r, "api.calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, calendarResponse{Year: year, Month: int(month), Cells: s.league.Calendar(year, month)})
}

type seriesResponse struct {
	Scores []form.Point `json:"scores"`
	Ranks  []form.Point `json:"ranks"`
}

func (s *Server) handleSeries(w http.ResponseWriter, _ *http.Request) {
	scores, ranks := s.league.Series()
	writeJSON(w, http.StatusOK, seriesResponse{Scores: scores, Ranks: ranks})
}

func (s *Server) handlePosts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.league.Posts())
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	p, err := s.league.Post(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "api.get_post", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type commentRequest struct {
	Nick string `json:"nick"`
	Text string `json:"text"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_comment"
	var req commentRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	p, err := s.league.AddComment(r.Context(), chi.URLParam(r, "id"), req.Nick, req.Text)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
