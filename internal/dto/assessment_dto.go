package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/kompas-go-api/internal/assessment"
	"github.com/noah-isme/kompas-go-api/internal/models"
)

// RunAssessmentRequest tunes a single assessment run. Both fields fall back
// to the configured defaults when omitted.
type RunAssessmentRequest struct {
	FrameworkVersion string `json:"framework_version" validate:"omitempty,max=64"`
	ModelID          string `json:"model_id" validate:"omitempty,max=128"`
}

// CategoryScoreResponse is one RIASEC category in a result. Score is null
// when no question in the category could be attempted.
type CategoryScoreResponse struct {
	Category  string   `json:"category"`
	Name      string   `json:"name"`
	Score     *float64 `json:"score"`
	Attempted int      `json:"attempted"`
	Failed    int      `json:"failed"`
}

// AnswerResponse is one evaluated framework question.
type AnswerResponse struct {
	QuestionID uint    `json:"question_id"`
	Category   string  `json:"category"`
	Verdict    string  `json:"verdict"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
	Cached     bool    `json:"cached"`
}

// AssessmentResultResponse serializes a completed run: the ranked category
// scores, the synthesized recommendation, and the per-question transcript.
type AssessmentResultResponse struct {
	RunID              string                  `json:"run_id"`
	StudentID          string                  `json:"student_id"`
	FrameworkVersion   string                  `json:"framework_version"`
	ModelID            string                  `json:"model_id"`
	ContextFingerprint string                  `json:"context_fingerprint"`
	ProfileCode        string                  `json:"profile_code"`
	RankedPaths        []string                `json:"ranked_paths"`
	Summary            string                  `json:"summary"`
	OverallConfidence  float64                 `json:"overall_confidence"`
	Scores             []CategoryScoreResponse `json:"scores"`
	Answers            []AnswerResponse        `json:"answers"`
	CacheHits          int                     `json:"cache_hits"`
	CacheMisses        int                     `json:"cache_misses"`
	StartedAt          time.Time               `json:"started_at"`
	CompletedAt        time.Time               `json:"completed_at"`
}

// NewCategoryScoreResponses converts engine scores, preserving their ranking
// order. No-data categories serialize with a null score.
func NewCategoryScoreResponses(scores []assessment.CategoryScore) []CategoryScoreResponse {
	out := make([]CategoryScoreResponse, 0, len(scores))
	for _, s := range scores {
		resp := CategoryScoreResponse{
			Category:  string(s.Category),
			Name:      s.Category.Name(),
			Attempted: s.Attempted,
			Failed:    s.Failed,
		}
		if s.HasData {
			v := s.Normalized
			resp.Score = &v
		}
		out = append(out, resp)
	}
	return out
}

// NewAssessmentRunResponse converts a just-completed run.
func NewAssessmentRunResponse(result assessment.RunResult) AssessmentResultResponse {
	answers := make([]AnswerResponse, 0, len(result.Transcript))
	for _, entry := range result.Transcript {
		answers = append(answers, AnswerResponse{
			QuestionID: entry.Question.ID,
			Category:   string(entry.Question.Category),
			Verdict:    string(entry.Answer.Verdict),
			Rationale:  entry.Answer.Rationale,
			Confidence: entry.Answer.Confidence,
			Cached:     entry.Answer.Cached,
		})
	}

	return AssessmentResultResponse{
		RunID:              result.RunID,
		StudentID:          result.SubjectID,
		FrameworkVersion:   result.FrameworkVersion,
		ModelID:            result.ModelID,
		ContextFingerprint: result.Fingerprint,
		ProfileCode:        result.Recommendation.ProfileCode,
		RankedPaths:        result.Recommendation.RankedPaths,
		Summary:            result.Recommendation.Summary,
		OverallConfidence:  result.Recommendation.OverallConfidence,
		Scores:             NewCategoryScoreResponses(result.Scores),
		Answers:            answers,
		CacheHits:          result.Stats.CacheHits,
		CacheMisses:        result.Stats.CacheMisses,
		StartedAt:          result.StartedAt,
		CompletedAt:        result.CompletedAt,
	}
}

// NewAssessmentResultResponse rebuilds a response from the persisted row.
// Scores and ranked paths were stored as the serialized response shapes, so
// the decode is the exact inverse of the save.
func NewAssessmentResultResponse(row models.AssessmentResult, answers []models.AssessmentAnswer) (AssessmentResultResponse, error) {
	var scores []CategoryScoreResponse
	if len(row.Scores) > 0 {
		if err := json.Unmarshal(row.Scores, &scores); err != nil {
			return AssessmentResultResponse{}, err
		}
	}
	var paths []string
	if len(row.RankedPaths) > 0 {
		if err := json.Unmarshal(row.RankedPaths, &paths); err != nil {
			return AssessmentResultResponse{}, err
		}
	}

	answerDTOs := make([]AnswerResponse, 0, len(answers))
	for _, a := range answers {
		answerDTOs = append(answerDTOs, AnswerResponse{
			QuestionID: a.QuestionID,
			Category:   a.CategoryCode,
			Verdict:    a.Verdict,
			Rationale:  a.Rationale,
			Confidence: a.Confidence,
			Cached:     a.Cached,
		})
	}

	return AssessmentResultResponse{
		RunID:              row.RunID,
		StudentID:          row.StudentID,
		FrameworkVersion:   row.FrameworkVersion,
		ModelID:            row.ModelID,
		ContextFingerprint: row.ContextFingerprint,
		ProfileCode:        row.ProfileCode,
		RankedPaths:        paths,
		Summary:            row.Summary,
		OverallConfidence:  row.OverallConfidence,
		Scores:             scores,
		Answers:            answerDTOs,
		CacheHits:          row.CacheHits,
		CacheMisses:        row.CacheMisses,
		StartedAt:          row.StartedAt,
		CompletedAt:        row.CompletedAt,
	}, nil
}
