package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/pkg/logger"
	"github.com/okian/klapi/pkg/metrics"
)

// mutate runs one admin action against the confirmed backend state, reloaded
// first so lookups see writes whose notifications are still queued. fn
// performs the backend writes and returns the audit message. After a
// successful write the log is appended and the state reloaded; failures of
// either are logged, not returned, since the write itself is confirmed.
func (s *Service) mutate(ctx context.Context, kind model.LogKind, fn func(model.State) (string, error)) error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	if err := s.Reload(ctx); err != nil {
		metrics.RecordMutation(string(kind), metrics.OutcomeError)
		return fmt.Errorf("refresh state: %w", err)
	}
	msg, err := fn(s.View().State)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, ErrDuplicate) {
			outcome = metrics.OutcomeDuplicate
		}
		metrics.RecordMutation(string(kind), outcome)
		return err
	}
	metrics.RecordMutation(string(kind), metrics.OutcomeOK)

	entry := model.LogEntry{Timestamp: s.now(), Kind: kind, Message: msg}
	if err := s.store.AppendLog(ctx, entry); err != nil {
		s.logger.Error(ctx, "failed to append audit log",
			logger.String("kind", string(kind)), logger.Error(err))
		metrics.RecordError("league", "append_log")
	}
	if err := s.Reload(ctx); err != nil {
		s.logger.Error(ctx, "reload after mutation failed",
			logger.String("kind", string(kind)), logger.Error(err))
	}
	s.logger.Info(ctx, msg, logger.String("kind", string(kind)))
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func parseDate(date model.Date) (model.Date, error) {
	d, err := model.ParseDate(strings.TrimSpace(string(date)))
	if err != nil {
		return "", invalid(err)
	}
	return d, nil
}

// AddPlanned schedules a new event on date.
func (s *Service) AddPlanned(ctx context.Context, date model.Date) (model.GrandPrix, error) {
	var out model.GrandPrix
	err := s.mutate(ctx, model.LogPlanAdd, func(model.State) (string, error) {
		d, err := parseDate(date)
		if err != nil {
			return "", err
		}
		out = model.GrandPrix{ID: s.newID(), Date: d, Status: model.StatusPlanned}
		if err := s.store.SaveEvent(ctx, out); err != nil {
			return "", err
		}
		return fmt.Sprintf("Planned GP on %s", d), nil
	})
	return out, err
}

// EditEventDate moves an event, planned or played, to another date.
func (s *Service) EditEventDate(ctx context.Context, id string, date model.Date) (model.GrandPrix, error) {
	var out model.GrandPrix
	err := s.mutate(ctx, model.LogPlanEdit, func(st model.State) (string, error) {
		d, err := parseDate(date)
		if err != nil {
			return "", err
		}
		g, ok := st.FindEvent(id)
		if !ok {
			return "", fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		prev := g.Date
		out = g.Clone()
		out.Date = d
		if err := s.store.SaveEvent(ctx, out); err != nil {
			return "", err
		}
		return fmt.Sprintf("Moved GP %s from %s to %s", id, prev, d), nil
	})
	return out, err
}

// RecordResults stores results for date. A planned event on that date becomes
// the played one and keeps its id; otherwise a new played event is created.
func (s *Service) RecordResults(ctx context.Context, date model.Date, rounds model.Rounds) (model.GrandPrix, error) {
	var out model.GrandPrix
	err := s.mutate(ctx, model.LogGPAdd, func(st model.State) (string, error) {
		d, err := parseDate(date)
		if err != nil {
			return "", err
		}
		if err := rounds.Validate(); err != nil {
			return "", invalid(err)
		}
		out = model.GrandPrix{ID: s.newID(), Date: d, Status: model.StatusPlayed, Rounds: rounds.Clone()}
		planned, converted := st.PlannedOn(d)
		if !converted {
			if err := s.store.SaveEvent(ctx, out); err != nil {
				return "", err
			}
			return fmt.Sprintf("Added GP %s (%d players)", d, len(rounds)), nil
		}
		out.ID = planned.ID
		if err := s.store.ConvertPlanned(ctx, out); err != nil {
			return "", err
		}
		return fmt.Sprintf("Recorded results of planned GP %s (%d players)", d, len(rounds)), nil
	})
	return out, err
}

// RecordResultsFor stores results for an existing event. A planned event
// becomes played; a played event has its results replaced.
func (s *Service) RecordResultsFor(ctx context.Context, id string, rounds model.Rounds) (model.GrandPrix, error) {
	var out model.GrandPrix
	err := s.mutate(ctx, model.LogGPEditFromPlan, func(st model.State) (string, error) {
		if err := rounds.Validate(); err != nil {
			return "", invalid(err)
		}
		g, ok := st.FindEvent(id)
		if !ok {
			return "", fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		out = model.GrandPrix{ID: g.ID, Date: g.Date, Status: model.StatusPlayed, Rounds: rounds.Clone()}
		if err := s.store.SaveEvent(ctx, out); err != nil {
			return "", err
		}
		return fmt.Sprintf("Recorded results of GP %s (%d players)", g.Date, len(rounds)), nil
	})
	return out, err
}

// DeleteEvent removes an event.
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	return s.mutate(ctx, model.LogGPDelete, func(st model.State) (string, error) {
		g, ok := st.FindEvent(id)
		if !ok {
			return "", fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		if err := s.store.DeleteEvent(ctx, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted %s GP %s", g.Status, g.Date), nil
	})
}

// AddPlayer adds a roster member. The id is derived from the name and must
// be unused.
func (s *Service) AddPlayer(ctx context.Context, name, avatar, bio string) (model.Player, error) {
	var out model.Player
	err := s.mutate(ctx, model.LogPlayerAdd, func(st model.State) (string, error) {
		name = strings.TrimSpace(name)
		if name == "" {
			return "", invalid(model.ErrEmptyName)
		}
		out = model.Player{ID: model.PlayerID(name), Name: name, Avatar: avatar, Bio: bio}
		if _, exists := st.FindPlayer(out.ID); exists {
			return "", fmt.Errorf("player %s: %w", out.ID, ErrDuplicate)
		}
		if err := s.store.SavePlayer(ctx, out); err != nil {
			return "", err
		}
		return fmt.Sprintf("Added player %s", name), nil
	})
	return out, err
}

// UpdatePlayer overwrites a player's profile with the submitted one. The id
// never changes and the name may not be blank.
func (s *Service) UpdatePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	var out model.Player
	err := s.mutate(ctx, model.LogPlayerEdit, func(st model.State) (string, error) {
		if _, ok := st.FindPlayer(p.ID); !ok {
			return "", fmt.Errorf("player %s: %w", p.ID, ErrNotFound)
		}
		out = model.Player{ID: p.ID, Name: strings.TrimSpace(p.Name), Avatar: p.Avatar, Bio: p.Bio}
		if out.Name == "" {
			return "", invalid(model.ErrEmptyName)
		}
		if err := s.store.SavePlayer(ctx, out); err != nil {
			return "", err
		}
		return fmt.Sprintf("Edited player %s", out.Name), nil
	})
	return out, err
}

// DeletePlayer removes a player from the roster. Recorded rounds stay.
func (s *Service) DeletePlayer(ctx context.Context, id string) error {
	return s.mutate(ctx, model.LogPlayerDelete, func(st model.State) (string, error) {
		p, ok := st.FindPlayer(id)
		if !ok {
			return "", fmt.Errorf("player %s: %w", id, ErrNotFound)
		}
		if err := s.store.DeletePlayer(ctx, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted player %s", p.Name), nil
	})
}

// AddPost publishes a bulletin post.
func (s *Service) AddPost(ctx context.Context, title, body, author string) (model.Post, error) {
	var out model.Post
	err := s.mutate(ctx, model.LogPostAdd, func(model.State) (string, error) {
		title = strings.TrimSpace(title)
		if title == "" {
			return "", invalid(errors.New("title must not be empty"))
		}
		out = model.Post{ID: s.newID(), Title: title, Body: body, Author: author, Date: s.now(), Comments: []model.Comment{}}
		if err := s.store.SavePost(ctx, out); err != nil {
			return "", err
		}
		return fmt.Sprintf("Added post %q", title), nil
	})
	return out, err
}

// DeletePost removes a post with its comments.
func (s *Service) DeletePost(ctx context.Context, id string) error {
	return s.mutate(ctx, model.LogPostDelete, func(st model.State) (string, error) {
		p, ok := st.FindPost(id)
		if !ok {
			return "", fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		if err := s.store.DeletePost(ctx, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted post %q", p.Title), nil
	})
}

// AddComment appends a reader comment to a post.
func (s *Service) AddComment(ctx context.Context, postID, nick, text string) (model.Post, error) {
	var out model.Post
	err := s.mutate(ctx, model.LogCommentAdd, func(st model.State) (string, error) {
		nick, text = strings.TrimSpace(nick), strings.TrimSpace(text)
		if nick == "" || text == "" {
			return "", invalid(errors.New("nick and text are required"))
		}
		p, ok := st.FindPost(postID)
		if !ok {
			return "", fmt.Errorf("post %s: %w", postID, ErrNotFound)
		}
		out = p.Clone()
		out.Comments = append(out.Comments, model.Comment{Nick: nick, Text: text, Timestamp: s.now()})
		if err := s.store.SavePost(ctx, out); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s commented on %q", nick, p.Title), nil
	})
	return out, err
}
