package model

import "errors"

// Validation errors.
var (
	ErrMissingID         = errors.New("missing id")
	ErrInvalidDate       = errors.New("invalid calendar date, expected YYYY-MM-DD")
	ErrInvalidStatus     = errors.New("invalid event status")
	ErrPlannedWithRounds = errors.New("planned event cannot carry rounds")
	ErrInvalidScores     = errors.New("invalid round scores")
	ErrNoParticipants    = errors.New("results need at least one participant")
	ErrEmptyName         = errors.New("name must not be empty")
)
