package assessment

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// ErrIncompleteContext means the subject has no score records at all. It is
// the only error that aborts a run; every later failure degrades instead.
var ErrIncompleteContext = errors.New("assessment: subject has no score records")

// SubjectProfile carries the identity fields rendered into the evaluation
// context.
type SubjectProfile struct {
	ID     string
	Name   string
	Age    int
	School string
	Notes  string
}

// ScoreRecord is one historical score for one field of study.
type ScoreRecord struct {
	Field string
	Level int
	Value float64
}

// ForecastValue is a projected future score with its confidence band.
type ForecastValue struct {
	Field string
	Value float64
	Lower float64
	Upper float64
}

// ContextInput is everything the builder folds into an evaluation context.
type ContextInput struct {
	Profile   SubjectProfile
	Scores    []ScoreRecord
	Forecasts []ForecastValue
}

// EvaluationContext is the immutable snapshot all question evaluations in a
// run share. The fingerprint is a hash of the rendered serialization, so the
// two can never drift apart.
type EvaluationContext struct {
	subjectID   string
	fingerprint string
	rendered    string
}

// SubjectID returns the subject this context was built for.
func (c *EvaluationContext) SubjectID() string { return c.subjectID }

// Fingerprint returns the hex sha256 of the canonical serialization.
func (c *EvaluationContext) Fingerprint() string { return c.fingerprint }

// Rendered returns the canonical serialization sent to the model.
func (c *EvaluationContext) Rendered() string { return c.rendered }

// BuildContext assembles the canonical serialization and its fingerprint.
// Ordering is total: fields lexically, then records by level with input
// order breaking level ties, so logically identical inputs always produce
// byte-identical serializations.
func BuildContext(input ContextInput) (*EvaluationContext, error) {
	if len(input.Scores) == 0 {
		return nil, ErrIncompleteContext
	}

	scores := make([]ScoreRecord, len(input.Scores))
	copy(scores, input.Scores)
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Field != scores[j].Field {
			return scores[i].Field < scores[j].Field
		}
		return scores[i].Level < scores[j].Level
	})

	forecasts := make([]ForecastValue, len(input.Forecasts))
	copy(forecasts, input.Forecasts)
	sort.SliceStable(forecasts, func(i, j int) bool {
		return forecasts[i].Field < forecasts[j].Field
	})

	var b strings.Builder
	b.WriteString("Subject: ")
	b.WriteString(input.Profile.ID)
	b.WriteString("\nName: ")
	b.WriteString(input.Profile.Name)
	b.WriteString("\nAge: ")
	b.WriteString(strconv.Itoa(input.Profile.Age))
	b.WriteString("\nSchool: ")
	b.WriteString(input.Profile.School)
	b.WriteString("\nNotes: ")
	b.WriteString(input.Profile.Notes)
	b.WriteString("\n\nScore history (level:score):\n")

	for start := 0; start < len(scores); {
		end := start
		for end < len(scores) && scores[end].Field == scores[start].Field {
			end++
		}
		writeFieldLine(&b, scores[start].Field, scores[start:end])
		start = end
	}

	if len(forecasts) > 0 {
		b.WriteString("\nProjected grade-12 scores:\n")
		for _, f := range forecasts {
			b.WriteString("  ")
			b.WriteString(f.Field)
			b.WriteString(": ")
			b.WriteString(exactFloat(f.Value))
			b.WriteString(" [")
			b.WriteString(exactFloat(f.Lower))
			b.WriteString(", ")
			b.WriteString(exactFloat(f.Upper))
			b.WriteString("]\n")
		}
	}

	rendered := b.String()
	sum := sha256.Sum256([]byte(rendered))

	return &EvaluationContext{
		subjectID:   input.Profile.ID,
		fingerprint: hex.EncodeToString(sum[:]),
		rendered:    rendered,
	}, nil
}

// writeFieldLine emits one field's series plus derived aggregates. Series
// values keep full precision so any score change alters the fingerprint;
// aggregates are rounded for prompt readability only.
func writeFieldLine(b *strings.Builder, field string, records []ScoreRecord) {
	b.WriteString("  ")
	b.WriteString(field)
	b.WriteString(":")

	sum := 0.0
	for _, r := range records {
		b.WriteString(" ")
		b.WriteString(strconv.Itoa(r.Level))
		b.WriteString(":")
		b.WriteString(exactFloat(r.Value))
		sum += r.Value
	}

	avg := sum / float64(len(records))
	latest := records[len(records)-1].Value
	b.WriteString(" | avg ")
	b.WriteString(strconv.FormatFloat(avg, 'f', 2, 64))
	b.WriteString(", latest ")
	b.WriteString(exactFloat(latest))
	b.WriteString("\n")
}

func exactFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
