package model

import (
	"sort"
	"time"
)

// Collection names one independently stored slice of the league state.
type Collection string

// Collections, named as they are persisted.
const (
	CollectionPlayers Collection = "players"
	CollectionEvents  Collection = "gps"
	CollectionPosts   Collection = "posts"
	CollectionLogs    Collection = "logs"
)

// AllCollections lists every collection in a stable order.
var AllCollections = []Collection{CollectionPlayers, CollectionEvents, CollectionPosts, CollectionLogs}

// LogKind classifies an audit entry.
type LogKind string

// Audit log kinds, one per mutation.
const (
	LogInit           LogKind = "INIT"
	LogPlanAdd        LogKind = "PLAN_ADD"
	LogPlanEdit       LogKind = "PLAN_EDIT"
	LogGPAdd          LogKind = "GP_ADD"
	LogGPEditFromPlan LogKind = "GP_EDIT_FROM_PLAN"
	LogGPDelete       LogKind = "GP_DELETE"
	LogPlayerAdd      LogKind = "PLAYER_ADD"
	LogPlayerEdit     LogKind = "PLAYER_EDIT"
	LogPlayerDelete   LogKind = "PLAYER_DELETE"
	LogPostAdd        LogKind = "POST_ADD"
	LogPostDelete     LogKind = "POST_DELETE"
	LogCommentAdd     LogKind = "COMMENT_ADD"
)

// LogEntry is one append-only audit record.
type LogEntry struct {
	Timestamp time.Time `json:"ts" msgpack:"ts"`
	Kind      LogKind   `json:"kind" msgpack:"kind"`
	Message   string    `json:"message" msgpack:"message"`
}

// Comment is a reader comment under a post.
type Comment struct {
	Nick      string    `json:"nick" msgpack:"nick"`
	Text      string    `json:"text" msgpack:"text"`
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// Post is a bulletin board entry.
type Post struct {
	ID       string    `json:"id" msgpack:"id"`
	Title    string    `json:"title" msgpack:"title"`
	Body     string    `json:"body" msgpack:"body"`
	Author   string    `json:"author" msgpack:"author"`
	Date     time.Time `json:"date" msgpack:"date"`
	Comments []Comment `json:"comments" msgpack:"comments"`
}

// Clone returns a deep copy.
func (p Post) Clone() Post {
	p.Comments = append([]Comment(nil), p.Comments...)
	return p
}

// State is the normalized league state and the persisted snapshot record.
type State struct {
	Players []Player    `json:"players"`
	Events  []GrandPrix `json:"gps"`
	Posts   []Post      `json:"posts"`
	Logs    []LogEntry  `json:"logs"`
}

// Clone returns a deep copy safe to hand to readers.
func (s State) Clone() State {
	out := State{
		Players: append([]Player(nil), s.Players...),
		Events:  make([]GrandPrix, len(s.Events)),
		Posts:   make([]Post, len(s.Posts)),
		Logs:    append([]LogEntry(nil), s.Logs...),
	}
	for i, g := range s.Events {
		out.Events[i] = g.Clone()
	}
	for i, p := range s.Posts {
		out.Posts[i] = p.Clone()
	}
	return out
}

// Replace copies the named collections from src into s.
func (s *State) Replace(src State, collections ...Collection) {
	for _, c := range collections {
		switch c {
		case CollectionPlayers:
			s.Players = src.Players
		case CollectionEvents:
			s.Events = src.Events
		case CollectionPosts:
			s.Posts = src.Posts
		case CollectionLogs:
			s.Logs = src.Logs
		}
	}
}

// Played returns played events sorted ascending by date. Events sharing a
// date keep their collection order.
func (s State) Played() []GrandPrix {
	return s.byStatus(StatusPlayed)
}

// Planned returns planned events sorted ascending by date.
func (s State) Planned() []GrandPrix {
	return s.byStatus(StatusPlanned)
}

func (s State) byStatus(status Status) []GrandPrix {
	out := make([]GrandPrix, 0, len(s.Events))
	for _, g := range s.Events {
		if g.Status == status {
			out = append(out, g)
		}
	}
	SortEvents(out)
	return out
}

// SortEvents sorts events ascending by date, stable.
func SortEvents(events []GrandPrix) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date < events[j].Date })
}

// PlannedOn returns the first planned event, in collection order, dated exactly date.
func (s State) PlannedOn(date Date) (GrandPrix, bool) {
	for _, g := range s.Events {
		if g.Planned() && g.Date == date {
			return g, true
		}
	}
	return GrandPrix{}, false
}

// FindPlayer looks a player up by id.
func (s State) FindPlayer(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// FindEvent looks an event up by id.
func (s State) FindEvent(id string) (GrandPrix, bool) {
	for _, g := range s.Events {
		if g.ID == id {
			return g, true
		}
	}
	return GrandPrix{}, false
}

// FindPost looks a post up by id.
func (s State) FindPost(id string) (Post, bool) {
	for _, p := range s.Posts {
		if p.ID == id {
			return p, true
		}
	}
	return Post{}, false
}

// Feed returns posts newest first.
func (s State) Feed() []Post {
	out := append([]Post(nil), s.Posts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
