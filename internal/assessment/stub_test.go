package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/noah-isme/kompas-go-api/pkg/ai"
)

// askerFunc adapts a function to ai.Asker for scripted test backends.
type askerFunc func(ctx context.Context, req ai.Request) (json.RawMessage, error)

func (f askerFunc) Ask(ctx context.Context, req ai.Request) (json.RawMessage, error) {
	return f(ctx, req)
}

func verdictReply(verdict string, confidence float64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"verdict":%q,"rationale":"based on the score history","confidence":%v}`, verdict, confidence))
}

func recommendationReply(confidence float64, paths ...string) json.RawMessage {
	encoded, _ := json.Marshal(paths)
	return json.RawMessage(fmt.Sprintf(`{"career_paths":%s,"summary":"solid technical profile","confidence":%v}`, encoded, confidence))
}

// memCache is an in-memory AnswerCache with injectable failures.
type memCache struct {
	mu      sync.Mutex
	entries map[string]QuestionAnswer
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]QuestionAnswer)}
}

func (c *memCache) Get(ctx context.Context, key CacheKey) (QuestionAnswer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return QuestionAnswer{}, false, c.getErr
	}
	answer, ok := c.entries[key.String()]
	return answer, ok, nil
}

func (c *memCache) Put(ctx context.Context, key CacheKey, answer QuestionAnswer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[key.String()] = answer
	return nil
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type stubFrameworks struct {
	questions []Question
	err       error
}

func (s stubFrameworks) LoadFramework(ctx context.Context, version string) ([]Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.questions, nil
}

type stubSubjects struct {
	input ContextInput
	err   error
}

func (s stubSubjects) LoadSubject(ctx context.Context, subjectID string) (ContextInput, error) {
	if s.err != nil {
		return ContextInput{}, s.err
	}
	return s.input, nil
}

// eventRecorder collects observer events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) ObserveRun(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) byKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, event := range r.events {
		if event.Kind == kind {
			out = append(out, event)
		}
	}
	return out
}

// sevenQuestions is the reference framework used across scoring and pipeline
// tests: one category, weights summing to 5.9.
func sevenQuestions() []Question {
	weights := []float64{0.9, 0.9, 0.8, 0.9, 0.8, 0.7, 0.9}
	questions := make([]Question, len(weights))
	for i, weight := range weights {
		questions[i] = Question{
			ID:               uint(i + 1),
			FrameworkVersion: "v1",
			Category:         CategoryRealistic,
			CategoryName:     "Realistic",
			Text:             fmt.Sprintf("Does the record support technical aptitude marker %d?", i+1),
			Weight:           weight,
		}
	}
	return questions
}

func answersFor(questions []Question, verdict Verdict, confidence float64) []QuestionAnswer {
	answers := make([]QuestionAnswer, len(questions))
	for i, q := range questions {
		answers[i] = QuestionAnswer{QuestionID: q.ID, Verdict: verdict, Confidence: confidence}
	}
	return answers
}

func sampleContextInput(subjectID string) ContextInput {
	return ContextInput{
		Profile: SubjectProfile{
			ID:     subjectID,
			Name:   "Linh Tran",
			Age:    17,
			School: "THPT Le Quy Don",
			Notes:  "enjoys robotics club",
		},
		Scores: []ScoreRecord{
			{Field: "Mathematics", Level: 9, Value: 8.2},
			{Field: "Mathematics", Level: 10, Value: 8.6},
			{Field: "Physics", Level: 9, Value: 7.9},
			{Field: "Physics", Level: 10, Value: 8.4},
		},
		Forecasts: []ForecastValue{
			{Field: "Mathematics", Value: 9.1, Lower: 8.6, Upper: 9.6},
		},
	}
}
