package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Scores are one player's round scores in a single GP, in round order.
type Scores []int

// Sum returns the per-event sum. Empty scores sum to 0.
func (s Scores) Sum() int {
	total := 0
	for _, v := range s {
		total += v
	}
	return total
}

// Spread returns max minus min, 0 when empty.
func (s Scores) Spread() int {
	if len(s) == 0 {
		return 0
	}
	lo, hi := s[0], s[0]
	for _, v := range s[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return hi - lo
}

// Validate requires exactly RoundsPerEvent non-negative scores.
func (s Scores) Validate() error {
	if len(s) != RoundsPerEvent {
		return fmt.Errorf("%w: want %d rounds, got %d", ErrInvalidScores, RoundsPerEvent, len(s))
	}
	for i, v := range s {
		if v < 0 {
			return fmt.Errorf("%w: round %d is negative", ErrInvalidScores, i+1)
		}
	}
	return nil
}

// RoundEntry is one participant's line in a GP.
type RoundEntry struct {
	PlayerID string `msgpack:"player"`
	Scores   Scores `msgpack:"scores"`
}

// Rounds maps player ids to scores and keeps insertion order. The order is the
// tie-break order when participants of one event are ranked.
//
// Consumers pick their own policy for players without an entry: totals and the
// score series zero-fill, placings and the rank series exclude.
type Rounds []RoundEntry

// Get returns the scores recorded for a player.
func (r Rounds) Get(playerID string) (Scores, bool) {
	for _, e := range r {
		if e.PlayerID == playerID {
			return e.Scores, true
		}
	}
	return nil, false
}

// Has reports whether the player took part.
func (r Rounds) Has(playerID string) bool {
	_, ok := r.Get(playerID)
	return ok
}

// Sum returns the player's per-event sum, 0 when absent.
func (r Rounds) Sum(playerID string) int {
	s, _ := r.Get(playerID)
	return s.Sum()
}

// Set replaces the player's scores in place or appends a new entry.
func (r Rounds) Set(playerID string, scores Scores) Rounds {
	for i := range r {
		if r[i].PlayerID == playerID {
			out := r.Clone()
			out[i].Scores = append(Scores(nil), scores...)
			return out
		}
	}
	return append(r.Clone(), RoundEntry{PlayerID: playerID, Scores: append(Scores(nil), scores...)})
}

// Placing is a participant's finishing position within one event.
type Placing struct {
	PlayerID string `json:"playerId"`
	Sum      int    `json:"sum"`
	Position int    `json:"position"`
}

// Placings ranks the event's participants by ascending sum. No tie-break key
// exists: equal sums keep their rounds order, and positions are the 1-based
// index after the stable sort, so tied players get different positions.
func (r Rounds) Placings() []Placing {
	out := make([]Placing, len(r))
	for i, e := range r {
		out[i] = Placing{PlayerID: e.PlayerID, Sum: e.Scores.Sum()}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sum < out[j].Sum })
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// PositionOf returns the player's placing, false when the player did not take part.
func (r Rounds) PositionOf(playerID string) (int, bool) {
	for _, p := range r.Placings() {
		if p.PlayerID == playerID {
			return p.Position, true
		}
	}
	return 0, false
}

// MinSum returns the lowest per-event sum, false for an empty event.
func (r Rounds) MinSum() (int, bool) {
	if len(r) == 0 {
		return 0, false
	}
	lo := r[0].Scores.Sum()
	for _, e := range r[1:] {
		lo = min(lo, e.Scores.Sum())
	}
	return lo, true
}

// Clone returns a deep copy.
func (r Rounds) Clone() Rounds {
	if r == nil {
		return nil
	}
	out := make(Rounds, len(r))
	for i, e := range r {
		out[i] = RoundEntry{PlayerID: e.PlayerID, Scores: append(Scores(nil), e.Scores...)}
	}
	return out
}

// Validate checks recorded results before a write.
func (r Rounds) Validate() error {
	if len(r) == 0 {
		return ErrNoParticipants
	}
	seen := make(map[string]struct{}, len(r))
	for _, e := range r {
		if e.PlayerID == "" {
			return ErrMissingID
		}
		if _, dup := seen[e.PlayerID]; dup {
			return fmt.Errorf("%w: duplicate entry for %s", ErrInvalidScores, e.PlayerID)
		}
		seen[e.PlayerID] = struct{}{}
		if err := e.Scores.Validate(); err != nil {
			return fmt.Errorf("%s: %w", e.PlayerID, err)
		}
	}
	return nil
}

// MarshalJSON encodes rounds as an object keyed by player id, in order.
func (r Rounds) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.PlayerID)
		if err != nil {
			return nil, err
		}
		scores := e.Scores
		if scores == nil {
			scores = Scores{}
		}
		val, err := json.Marshal([]int(scores))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by player id keeping key order.
// A repeated key overwrites the earlier value in its original position.
func (r *Rounds) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("rounds: expected object, got %v", tok)
	}
	out := Rounds{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("rounds: expected string key, got %v", tok)
		}
		var scores Scores
		if err := dec.Decode(&scores); err != nil {
			return fmt.Errorf("rounds[%s]: %w", key, err)
		}
		out = out.Set(key, scores)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}
