// Package schema defines all canonical data types for the drift analysis
// output format, the ensemble agreement report and the request bodies.
package schema

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// SignaturePrefix is the literal prefix every drift signature carries.
const SignaturePrefix = "IDR:v1|"

// MaxConfidence is the hard ceiling for any confidence value.
const MaxConfidence = 0.95

// ThinkingLevel is the reasoning depth requested from the model. It doubles
// as the ensemble "mode" label.
type ThinkingLevel string

const (
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// DefaultModes is the mode list used when an ensemble request names none.
var DefaultModes = []string{string(ThinkingLow), string(ThinkingMedium), string(ThinkingHigh)}

// ParseThinkingLevel returns the level for s (case-insensitive, trimmed) and
// whether s named a known level.
func ParseThinkingLevel(s string) (ThinkingLevel, bool) {
	switch ThinkingLevel(strings.ToLower(strings.TrimSpace(s))) {
	case ThinkingLow:
		return ThinkingLow, true
	case ThinkingMedium:
		return ThinkingMedium, true
	case ThinkingHigh:
		return ThinkingHigh, true
	}
	return ThinkingMedium, false
}

// FeedbackVerdict is a user's verdict on a past analysis.
type FeedbackVerdict string

const (
	VerdictConfirm FeedbackVerdict = "confirm"
	VerdictReject  FeedbackVerdict = "reject"
)

// Signal is one timeline observation. Slice order is chronological.
type Signal struct {
	Day     string `json:"day" validate:"required"`
	Type    string `json:"type"`
	Content string `json:"content" validate:"required"`
}

// Settings tunes a single analysis run.
type Settings struct {
	BaselineWindowSize int           `json:"baseline_window_size" validate:"gte=1"`
	CurrentWindowSize  int           `json:"current_window_size" validate:"gte=1"`
	ThinkingLevel      ThinkingLevel `json:"thinking_level" validate:"oneof=low medium high"`
}

// DefaultSettings returns the settings used when a request omits them.
func DefaultSettings() Settings {
	return Settings{BaselineWindowSize: 2, CurrentWindowSize: 2, ThinkingLevel: ThinkingMedium}
}

// FeedbackEntry is one append-only feedback record.
type FeedbackEntry struct {
	AnalysisID string          `json:"analysis_id" validate:"required"`
	Verdict    FeedbackVerdict `json:"verdict" validate:"oneof=confirm reject"`
	Comment    string          `json:"comment,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// Validate checks the entry against its validate tags.
func (e *FeedbackEntry) Validate() error {
	return validate.Struct(e)
}

// IntentBlock is a natural-language snapshot of an intent.
type IntentBlock struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// EvidenceItem cites a day in the timeline supporting the judgment.
type EvidenceItem struct {
	Day    string `json:"day"`
	Reason string `json:"reason"`
}

// ReasoningCard is one explained step of the model's reasoning.
type ReasoningCard struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Refs  []string `json:"refs"`
}

// Judgment is one structured drift-analysis result (the AnalysisResult of
// the wire format). A Judgment is immutable once returned; helpers that
// change one return a copy.
type Judgment struct {
	AnalysisID     string          `json:"analysis_id"`
	BaselineIntent IntentBlock     `json:"baseline_intent"`
	CurrentIntent  IntentBlock     `json:"current_intent"`
	DriftDetected  bool            `json:"drift_detected"`
	Confidence     float64         `json:"confidence" validate:"gte=0,lte=0.95"`
	DriftDirection string          `json:"drift_direction"`
	Evidence       []EvidenceItem  `json:"evidence"`
	ReasoningCards []ReasoningCard `json:"reasoning_cards"`
	DriftSignature string          `json:"drift_signature"`
	OneQuestion    *string         `json:"one_question,omitempty"`
}

// Clone returns a deep copy of j.
func (j Judgment) Clone() Judgment {
	out := j
	out.Evidence = append([]EvidenceItem{}, j.Evidence...)
	out.ReasoningCards = make([]ReasoningCard, len(j.ReasoningCards))
	for i, c := range j.ReasoningCards {
		c.Refs = append([]string{}, c.Refs...)
		out.ReasoningCards[i] = c
	}
	if j.OneQuestion != nil {
		q := *j.OneQuestion
		out.OneQuestion = &q
	}
	return out
}

// Validate checks field-level constraints that the JSON decoder cannot.
func (j *Judgment) Validate() error {
	return validate.Struct(j)
}

// DriftVotes counts drift_detected votes across ensemble runs.
type DriftVotes struct {
	True  int `json:"true"`
	False int `json:"false"`
}

// DirectionVote is the number of runs that named a drift direction.
type DirectionVote struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// EvidenceAgreement buckets evidence by how many runs cited it. The JSON
// names are historical: three_of_three is full agreement, two_of_three is a
// majority of exactly two runs, one_of_three is a single run.
type EvidenceAgreement struct {
	ThreeOfThree []EvidenceItem `json:"three_of_three"`
	TwoOfThree   []EvidenceItem `json:"two_of_three"`
	OneOfThree   []EvidenceItem `json:"one_of_three"`
}

// Agreement summarises how far the ensemble runs agreed. Derived, never
// persisted.
type Agreement struct {
	DriftDetectedVotes DriftVotes        `json:"drift_detected_votes"`
	ConfidenceMin      float64           `json:"confidence_min"`
	ConfidenceMax      float64           `json:"confidence_max"`
	DirectionVotes     []DirectionVote   `json:"direction_votes"`
	EvidenceAgreement  EvidenceAgreement `json:"evidence_agreement"`
}

// AnalyzeRequest is the body of a single analysis.
type AnalyzeRequest struct {
	Signals  []Signal        `json:"signals" validate:"required,min=1,dive"`
	Settings *Settings       `json:"settings,omitempty"`
	Feedback []FeedbackEntry `json:"feedback,omitempty" validate:"omitempty,dive"`
}

// EffectiveSettings returns the request settings or the defaults.
func (r AnalyzeRequest) EffectiveSettings() Settings {
	if r.Settings == nil {
		return DefaultSettings()
	}
	return *r.Settings
}

// Validate checks the request against its validate tags.
func (r *AnalyzeRequest) Validate() error {
	return validate.Struct(r)
}

// EnsembleRequest is the body of an ensemble analysis.
type EnsembleRequest struct {
	Signals  []Signal        `json:"signals" validate:"required,min=1,dive"`
	Settings *Settings       `json:"settings,omitempty"`
	Feedback []FeedbackEntry `json:"feedback,omitempty" validate:"omitempty,dive"`
	Modes    []string        `json:"modes,omitempty" validate:"omitempty,max=8,dive,required"`
}

// EffectiveModes returns the requested modes or DefaultModes.
func (r EnsembleRequest) EffectiveModes() []string {
	if len(r.Modes) == 0 {
		return append([]string{}, DefaultModes...)
	}
	return append([]string{}, r.Modes...)
}

// Validate checks the request against its validate tags.
func (r *EnsembleRequest) Validate() error {
	return validate.Struct(r)
}

// RunFailure records why one ensemble mode produced no judgment.
type RunFailure struct {
	Mode    string    `json:"mode"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// EnsembleMeta describes how an ensemble run went.
type EnsembleMeta struct {
	Modes      []string     `json:"modes"`
	DurationMS int64        `json:"duration_ms"`
	Partial    bool         `json:"partial"`
	Errors     []RunFailure `json:"errors,omitempty"`
}

// EnsembleResponse is the full ensemble output.
type EnsembleResponse struct {
	AnalysisID string       `json:"analysis_id"`
	Analyses   []Judgment   `json:"analyses"`
	Consensus  Judgment     `json:"consensus"`
	Agreement  Agreement    `json:"agreement"`
	Meta       EnsembleMeta `json:"meta"`
}

// validate is shared by every Validate method in this package.
var validate = validator.New()
