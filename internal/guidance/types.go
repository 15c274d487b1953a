// Package guidance composes a user question into a recommendation bundle:
// generated guidance text, experience-level benefit notes, and a ranked
// product list. The Orchestrator fans the three parts out concurrently and
// merges whatever settles, substituting fallbacks for anything that failed.
package guidance

import (
	"time"

	"github.com/google/uuid"

	"github.com/leafwise/budtender/internal/products"
)

// ExperienceLevel re-exports the products enum so callers of this package
// never need to import products just to submit a question.
type ExperienceLevel = products.ExperienceLevel

const (
	LevelNew         = products.LevelNew
	LevelCasual      = products.LevelCasual
	LevelExperienced = products.LevelExperienced
)

// Request is one user submission. Immutable after NewRequest.
type Request struct {
	RawQuery        string          `json:"raw_query"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	RequestID       string          `json:"request_id"`
	IssuedAt        time.Time       `json:"issued_at"`
}

// NewRequest stamps a fresh request with an ID and the current time.
func NewRequest(rawQuery string, level ExperienceLevel) Request {
	return Request{
		RawQuery:        rawQuery,
		ExperienceLevel: level,
		RequestID:       uuid.New().String(),
		IssuedAt:        time.Now().UTC(),
	}
}

// Response is the merged answer for one Request. PartialFailure is true
// when at least one sub-task fell back to a canned value; the other
// sub-tasks' real results are still present unchanged.
type Response struct {
	Query           string             `json:"query"`
	ExperienceLevel ExperienceLevel    `json:"experience_level"`
	AIText          string             `json:"ai_text"`
	Benefits        []string           `json:"benefits"`
	Products        []products.Product `json:"products"`
	PartialFailure  bool               `json:"partial_failure"`
	Host            string             `json:"host"`
	IssuedAt        time.Time          `json:"issued_at"`
}
