package assessment

import (
	"fmt"
	"time"
)

// Category is a single-letter Holland code.
type Category string

// The six Holland categories, in canonical order.
const (
	CategoryRealistic     Category = "R"
	CategoryInvestigative Category = "I"
	CategoryArtistic      Category = "A"
	CategorySocial        Category = "S"
	CategoryEnterprising  Category = "E"
	CategoryConventional  Category = "C"
)

// Categories lists all Holland codes in canonical order. Scoring iterates
// this array rather than a map so accumulation order is fixed.
var Categories = [6]Category{
	CategoryRealistic,
	CategoryInvestigative,
	CategoryArtistic,
	CategorySocial,
	CategoryEnterprising,
	CategoryConventional,
}

var categoryNames = map[Category]string{
	CategoryRealistic:     "Realistic",
	CategoryInvestigative: "Investigative",
	CategoryArtistic:      "Artistic",
	CategorySocial:        "Social",
	CategoryEnterprising:  "Enterprising",
	CategoryConventional:  "Conventional",
}

// Name returns the human-readable category name, or the raw code when the
// category is unknown.
func (c Category) Name() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// Valid reports whether c is one of the six Holland codes.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// Verdict is the model's judgement for one question.
type Verdict string

const (
	// VerdictYes means the subject's record supports the question.
	VerdictYes Verdict = "Yes"
	// VerdictPartial means the record partially supports the question.
	VerdictPartial Verdict = "Partial"
	// VerdictNo means the record does not support the question.
	VerdictNo Verdict = "No"
	// VerdictError means evaluation failed; the question still counts
	// toward attempted weight so failures depress rather than inflate
	// category scores.
	VerdictError Verdict = "Error"
)

// Question is one framework question presented to the reasoning model.
type Question struct {
	ID               uint
	FrameworkVersion string
	Category         Category
	CategoryName     string
	Text             string
	KeySubjects      []string
	ThresholdExpr    string
	Weight           float64
	Description      string
}

// QuestionAnswer is the terminal outcome of evaluating one question.
type QuestionAnswer struct {
	QuestionID uint
	Verdict    Verdict
	Rationale  string
	Confidence float64
	Cached     bool
}

// TranscriptEntry pairs a question with its answer for reporting.
type TranscriptEntry struct {
	Question Question
	Answer   QuestionAnswer
}

// CategoryScore is the scored outcome for one Holland category.
type CategoryScore struct {
	Category   Category
	Raw        float64
	Weight     float64
	Normalized float64
	HasData    bool
	Attempted  int
	Failed     int
}

// Recommendation is the synthesized career guidance for a completed run.
type Recommendation struct {
	ProfileCode       string
	RankedPaths       []string
	Summary           string
	OverallConfidence float64
}

// CacheKey identifies one cached answer. Every field participates so a
// change to the subject's record, the framework, or the model invalidates
// the entry implicitly.
type CacheKey struct {
	SubjectID        string
	Fingerprint      string
	FrameworkVersion string
	ModelID          string
	QuestionID       uint
}

// String renders the Redis key for this entry.
func (k CacheKey) String() string {
	return fmt.Sprintf("assessment:answer:v1:%s:%s:%s:%s:%d",
		k.SubjectID, k.Fingerprint, k.FrameworkVersion, k.ModelID, k.QuestionID)
}

// Stage names a pipeline state. Transitions only move forward; Failed is
// reachable only from StageBuildingContext.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageBuildingContext Stage = "building_context"
	StageEvaluating      Stage = "evaluating_questions"
	StageScoring         Stage = "scoring"
	StageSynthesizing    Stage = "synthesizing"
	StageComplete        Stage = "complete"
	StageFailed          Stage = "failed"
)

// EventKind distinguishes observer notifications.
type EventKind string

const (
	// EventStage is emitted on every stage transition.
	EventStage EventKind = "stage"
	// EventQuestion is emitted each time a question reaches a terminal answer.
	EventQuestion EventKind = "question"
	// EventCompleted is emitted once with the final stage.
	EventCompleted EventKind = "completed"
	// EventFailed is emitted when the run aborts during context building.
	EventFailed EventKind = "failed"
)

// Event is a pipeline progress notification.
type Event struct {
	Kind      EventKind       `json:"kind"`
	RunID     string          `json:"run_id"`
	SubjectID string          `json:"subject_id"`
	Stage     Stage           `json:"stage"`
	Question  *QuestionAnswer `json:"question,omitempty"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Reason    string          `json:"reason,omitempty"`
	At        time.Time       `json:"at"`
}

// RunObserver receives pipeline progress events. Question events arrive
// concurrently from worker goroutines, so implementations must be safe for
// concurrent use and must not block; slow consumers should buffer or drop.
type RunObserver interface {
	ObserveRun(event Event)
}
