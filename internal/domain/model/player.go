package model

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Player is a roster member. Deleting a player does not touch historical rounds.
type Player struct {
	ID     string `json:"id" msgpack:"id"`
	Name   string `json:"name" msgpack:"name"`
	Avatar string `json:"avatar,omitempty" msgpack:"avatar,omitempty"`
	Bio    string `json:"bio,omitempty" msgpack:"bio,omitempty"`
}

// PlayerID derives the stable player id from a display name:
// lowercase, every whitespace run replaced by a single dash.
func PlayerID(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(name), "-")
}
