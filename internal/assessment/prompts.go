package assessment

import (
	"fmt"
	"strings"
)

func questionSystemPrompt() string {
	return "You are a career counselor evaluating a student against the Holland Code (RIASEC) framework. " +
		"Judge only the single question you are given, using only the student record provided. " +
		"Respond with a JSON object: {\"verdict\": \"Yes\"|\"Partial\"|\"No\", \"rationale\": string, \"confidence\": number between 0 and 1}. " +
		"The confidence expresses how certain you are in the verdict given the evidence."
}

// questionUserPrompt renders one question against the shared context. It
// deliberately carries no other question and no running tally; every
// evaluation must stand alone.
func questionUserPrompt(ectx *EvaluationContext, q Question) string {
	var b strings.Builder
	b.WriteString("STUDENT RECORD:\n")
	b.WriteString(ectx.Rendered())
	b.WriteString("\nQUESTION TO EVALUATE:\n")
	fmt.Fprintf(&b, "Category: %s (%s)\n", q.Category, q.CategoryName)
	fmt.Fprintf(&b, "Question: %s\n", q.Text)
	if len(q.KeySubjects) > 0 {
		fmt.Fprintf(&b, "Key subjects: %s\n", strings.Join(q.KeySubjects, ", "))
	}
	if q.ThresholdExpr != "" {
		fmt.Fprintf(&b, "Grade expectation: %s\n", q.ThresholdExpr)
	}
	b.WriteString("\nEvaluate this question INDEPENDENTLY based on the student record above. Return JSON.")
	return b.String()
}

func synthesisSystemPrompt() string {
	return "You are a career counselor writing final guidance from a completed RIASEC assessment. " +
		"Recommend between one and three concrete career paths that fit the strongest categories, " +
		"grounded in the per-question findings. " +
		"Respond with a JSON object: {\"career_paths\": [string], \"summary\": string, \"confidence\": number between 0 and 1}."
}

// synthesisUserPrompt renders the full assessment transcript grouped by
// category, the score ranking, and the profile code.
func synthesisUserPrompt(ectx *EvaluationContext, transcript []TranscriptEntry, scores []CategoryScore, profileCode string) string {
	byCategory := make(map[Category][]TranscriptEntry, len(Categories))
	for _, entry := range transcript {
		byCategory[entry.Question.Category] = append(byCategory[entry.Question.Category], entry)
	}

	var b strings.Builder
	b.WriteString("STUDENT RECORD:\n")
	b.WriteString(ectx.Rendered())
	b.WriteString("\nASSESSMENT FINDINGS BY CATEGORY:\n")
	for _, category := range Categories {
		entries := byCategory[category]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%s):\n", category, category.Name())
		for _, entry := range entries {
			fmt.Fprintf(&b, "  Q: %s\n", entry.Question.Text)
			answer := entry.Answer
			if answer.Verdict == VerdictError {
				b.WriteString("  A: not evaluated (evaluation failed)\n")
				continue
			}
			fmt.Fprintf(&b, "  A: %s (confidence %.2f) %s\n", answer.Verdict, answer.Confidence, answer.Rationale)
		}
	}

	b.WriteString("\nCATEGORY SCORES (strongest first):\n")
	for _, score := range scores {
		if !score.HasData {
			fmt.Fprintf(&b, "  %s (%s): no data\n", score.Category.Name(), score.Category)
			continue
		}
		fmt.Fprintf(&b, "  %s (%s): %.1f/100 across %d questions (%d failed)\n",
			score.Category.Name(), score.Category, score.Normalized, score.Attempted, score.Failed)
	}

	fmt.Fprintf(&b, "\nHOLLAND PROFILE: %s\n", profileCode)
	b.WriteString("\nRecommend 1-3 career paths with a short summary. Return JSON.")
	return b.String()
}
