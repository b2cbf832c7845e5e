package assessment

import (
	"sort"
	"strings"
)

// baseScore maps a verdict to its contribution before confidence and weight.
// Error scores zero but still consumes weight, so failures depress the
// category instead of silently shrinking its denominator to nothing.
func baseScore(v Verdict) float64 {
	switch v {
	case VerdictYes:
		return 1.0
	case VerdictPartial:
		return 0.5
	default:
		return 0.0
	}
}

// Score folds terminal answers into ranked category scores.
//
// Each answer contributes baseScore * confidence * weight to its category's
// raw sum, while the full weight of every attempted question, failed ones
// included, lands in the denominator. A category normalizes to
// 100 * raw / weight; a category with no attempted questions has no data
// rather than a zero.
//
// The result is deterministic for a given answer set regardless of arrival
// order: answers are accumulated in question-id order and categories in
// canonical order, so the float sums are bit-identical across runs.
func Score(questions []Question, answers []QuestionAnswer) []CategoryScore {
	byID := make(map[uint]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	ordered := make([]QuestionAnswer, len(answers))
	copy(ordered, answers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].QuestionID < ordered[j].QuestionID
	})

	index := make(map[Category]int, len(Categories))
	scores := make([]CategoryScore, len(Categories))
	for i, category := range Categories {
		index[category] = i
		scores[i] = CategoryScore{Category: category}
	}

	for _, answer := range ordered {
		question, ok := byID[answer.QuestionID]
		if !ok {
			continue
		}
		i, ok := index[question.Category]
		if !ok {
			continue
		}
		scores[i].Raw += baseScore(answer.Verdict) * answer.Confidence * question.Weight
		scores[i].Weight += question.Weight
		scores[i].Attempted++
		if answer.Verdict == VerdictError {
			scores[i].Failed++
		}
	}

	for i := range scores {
		if scores[i].Weight > 0 {
			scores[i].HasData = true
			scores[i].Normalized = 100 * scores[i].Raw / scores[i].Weight
		}
	}

	rankScores(scores)
	return scores
}

// rankScores orders categories strongest first: normalized score, then
// attempted count, then category code. Categories with no data sort last.
func rankScores(scores []CategoryScore) {
	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.HasData != b.HasData {
			return a.HasData
		}
		if a.Normalized != b.Normalized {
			return a.Normalized > b.Normalized
		}
		if a.Attempted != b.Attempted {
			return a.Attempted > b.Attempted
		}
		return a.Category < b.Category
	})
}

// TopProfile concatenates the codes of the strongest categories that have
// data, at most three letters.
func TopProfile(scores []CategoryScore) string {
	var b strings.Builder
	for _, score := range scores {
		if !score.HasData {
			continue
		}
		b.WriteString(string(score.Category))
		if b.Len() == 3 {
			break
		}
	}
	return b.String()
}
