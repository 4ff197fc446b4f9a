package model

import (
	"slices"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ThreadID identifies one conversation with the remote agent
type ThreadID string

// NewThreadID generates a new unique ThreadID
func NewThreadID() ThreadID {
	return ThreadID(uuid.New().String())
}

// Recommendation is a single car suggestion produced by the agent
type Recommendation struct {
	Car     string `json:"car"`
	Tagline string `json:"tagline,omitempty"`
	Content string `json:"content,omitempty"`
}

// Validate checks if the recommendation can be published
func (r *Recommendation) Validate() error {
	if r.Car == "" {
		return goerr.New("recommendation car is empty")
	}
	return nil
}

// LogEntry is a progress line emitted by the agent while it works
type LogEntry struct {
	Message string `json:"message"`
	Done    bool   `json:"done"`
}

// DetailedReview is the output of the agent's deep dive on one car
type DetailedReview struct {
	CarName    string `json:"car_name"`
	ReviewText string `json:"review_text"`
}

// AgentState is the state object shared with the remote agent.
// Recommendations and Logs are nil until the agent sends them; callers must
// treat nil as empty.
type AgentState struct {
	Model            string           `json:"model"`
	ResearchQuestion string           `json:"research_question,omitempty"`
	Report           string           `json:"report,omitempty"`
	Recommendations  []Recommendation `json:"recommendations,omitempty"`
	Logs             []LogEntry       `json:"logs,omitempty"`
	DetailedReview   *DetailedReview  `json:"current_detailed_review,omitempty"`
}

// Clone returns a deep copy of the state
func (s AgentState) Clone() AgentState {
	out := s
	out.Recommendations = slices.Clone(s.Recommendations)
	out.Logs = slices.Clone(s.Logs)
	if s.DetailedReview != nil {
		review := *s.DetailedReview
		out.DetailedReview = &review
	}
	return out
}

// StatePatch is a partial AgentState. Nil fields are left untouched when the
// patch is applied, except DetailedReview which is removed when
// ClearDetailedReview is set.
type StatePatch struct {
	Model            *string           `json:"model,omitempty"`
	ResearchQuestion *string           `json:"research_question,omitempty"`
	Report           *string           `json:"report,omitempty"`
	Recommendations  *[]Recommendation `json:"recommendations,omitempty"`
	Logs             *[]LogEntry       `json:"logs,omitempty"`
	DetailedReview   *DetailedReview   `json:"current_detailed_review,omitempty"`

	ClearDetailedReview bool `json:"-"`
}

// PatchFrom builds a patch that overwrites every field of the state
func PatchFrom(s AgentState) *StatePatch {
	s = s.Clone()
	return &StatePatch{
		Model:            &s.Model,
		ResearchQuestion: &s.ResearchQuestion,
		Report:           &s.Report,
		Recommendations:  &s.Recommendations,
		Logs:             &s.Logs,
		DetailedReview:   s.DetailedReview,

		ClearDetailedReview: s.DetailedReview == nil,
	}
}

// HasLogs reports whether the patch carries at least one log entry
func (p *StatePatch) HasLogs() bool {
	return p != nil && p.Logs != nil && len(*p.Logs) > 0
}

// Apply returns a new state with the patch applied on top of base. base is
// not modified.
func (p *StatePatch) Apply(base AgentState) AgentState {
	out := base.Clone()
	if p == nil {
		return out
	}

	if p.Model != nil {
		out.Model = *p.Model
	}
	if p.ResearchQuestion != nil {
		out.ResearchQuestion = *p.ResearchQuestion
	}
	if p.Report != nil {
		out.Report = *p.Report
	}
	if p.Recommendations != nil {
		out.Recommendations = slices.Clone(*p.Recommendations)
	}
	if p.Logs != nil {
		out.Logs = slices.Clone(*p.Logs)
	}
	switch {
	case p.DetailedReview != nil:
		review := *p.DetailedReview
		out.DetailedReview = &review
	case p.ClearDetailedReview:
		out.DetailedReview = nil
	}
	return out
}

// Snapshot is an immutable, versioned view of AgentState
type Snapshot struct {
	Version uint64
	State   AgentState
}
