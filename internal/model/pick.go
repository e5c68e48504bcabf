package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// pickIDRegex matches: {year}_R{round}_{originalOwner}[__tag]
// Example: 2028_R1_BOS
var pickIDRegex = regexp.MustCompile(`^(\d{4})_R([12])_([A-Z]{2,4})(?:__(.+))?$`)

// ErrInvalidPickID is returned for pick ids that do not follow the
// {year}_R{round}_{team} convention.
var ErrInvalidPickID = errors.New("model: invalid pick id format")

// PickRef is the decoded form of a pick id. The id is stable even when the
// pick's current owner changes.
type PickRef struct {
	PickID        string
	Year          int
	Round         int
	OriginalOwner string
	Tag           string
}

// MakePickID builds a pick id from its parts.
func MakePickID(year, round int, originalOwner string) string {
	return fmt.Sprintf("%d_R%d_%s", year, round, originalOwner)
}

// ParsePickID decodes a pick id string.
func ParsePickID(pickID string) (*PickRef, error) {
	m := pickIDRegex.FindStringSubmatch(pickID)
	if m == nil {
		return nil, fmt.Errorf("%w: %s (expected {YYYY}_R{1|2}_{TEAM})", ErrInvalidPickID, pickID)
	}
	year, _ := strconv.Atoi(m[1])
	round, _ := strconv.Atoi(m[2])
	return &PickRef{
		PickID:        pickID,
		Year:          year,
		Round:         round,
		OriginalOwner: m[3],
		Tag:           m[4],
	}, nil
}
