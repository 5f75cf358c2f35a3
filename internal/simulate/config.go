// Package simulate generates a fake season, plays it against a running
// server and checks the published standings against a local recompute.
package simulate

import (
	"time"

	"github.com/okian/klapi/internal/domain/model"
)

// Config holds the simulation parameters.
type Config struct {
	BaseURL  string        // server address
	User     string        // admin name
	Password string        // admin password
	Players  int           // roster size to generate
	Events   int           // weekly GPs to generate
	Workers  int           // concurrent writers
	Seed     uint64        // faker seed; equal seeds give equal seasons
	Start    model.Date    // date of the first GP
	Timeout  time.Duration // HTTP request timeout
}

// Stats counts what the run did.
type Stats struct {
	PlayersAdded     int
	PlayersDuplicate int
	EventsRecorded   int
	Failed           int
	Checked          int
	StartTime        time.Time
	Duration         time.Duration
}
