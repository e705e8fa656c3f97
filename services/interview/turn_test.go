package interview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stash/models"
	"stash/services/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	relevantVerdict = `{"isRelevant": true, "reason": "on topic", "suggestedRedirect": ""}`
	lowEvaluation   = `{"completion": 30, "readyForNext": false, "hints": ["Discuss cache eviction"]}`
	readyEvaluation = `{"completion": 90, "readyForNext": true, "hints": []}`
)

type fakeRetriever struct {
	chunks []string
	err    error
	topics [][]string
}

func (f *fakeRetriever) QueryTopicChunks(ctx context.Context, topics []string, limit int) ([]string, error) {
	f.topics = append(f.topics, topics)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) > limit {
		return f.chunks[:limit], nil
	}
	return f.chunks, nil
}

func TestNextTurnGuardRails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       TurnInput
		wantKind models.TurnKind
		check    func(t *testing.T, outcome models.TurnOutcome)
	}{
		{
			name:     "no template",
			in:       TurnInput{Answer: "I would add a cache"},
			wantKind: models.TurnError,
		},
		{
			name:     "template without questions",
			in:       TurnInput{Template: &models.InterviewTemplate{Title: "Empty"}, Answer: "I would add a cache"},
			wantKind: models.TurnError,
		},
		{
			name:     "index past the last question",
			in:       TurnInput{Template: urlShortenerTemplate(), QuestionIndex: 2, Answer: "I would add a cache"},
			wantKind: models.TurnComplete,
			check: func(t *testing.T, outcome models.TurnOutcome) {
				complete := outcome.(models.CompleteTurn)
				assert.False(t, complete.Advanced)
				assert.Equal(t, noNextQuestionMessage, complete.Message)
			},
		},
		{
			name:     "negative index",
			in:       TurnInput{Template: urlShortenerTemplate(), QuestionIndex: -1, Answer: "I would add a cache"},
			wantKind: models.TurnComplete,
		},
		{
			name: "question without text is skipped",
			in: TurnInput{
				Template: &models.InterviewTemplate{Questions: []models.Question{{Text: "  "}, {Text: "Next"}}},
				Answer:   "I would add a cache",
			},
			wantKind: models.TurnAdvance,
			check: func(t *testing.T, outcome models.TurnOutcome) {
				advance := outcome.(models.AdvanceTurn)
				assert.True(t, advance.Skipped)
				assert.Equal(t, 1, advance.NextQuestionIndex)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := llm.NewFakeClient()
			outcome := NewService(fake).NextTurn(context.Background(), tt.in)

			require.Equal(t, tt.wantKind, outcome.Kind())
			assert.Zero(t, fake.Calls())
			if tt.check != nil {
				tt.check(t, outcome)
			}
		})
	}
}

func TestNextTurnRubricCoverageCompletesLastQuestion(t *testing.T) {
	t.Parallel()

	template := &models.InterviewTemplate{
		Title: "Design a news feed",
		Questions: []models.Question{
			{Text: "How would you handle growth?", EvaluationCriteria: []string{"scalability", "caching"}},
		},
	}
	fake := llm.NewFakeClient().
		On("screening", relevantVerdict).
		On("evaluating a candidate's answer", lowEvaluation)

	outcome := NewService(fake).NextTurn(context.Background(), TurnInput{
		Template: template,
		Answer:   "I would scale this using caching and a CDN",
	})

	require.Equal(t, models.TurnComplete, outcome.Kind())
	complete := outcome.(models.CompleteTurn)
	assert.True(t, complete.Advanced)
	assert.Equal(t, closingMessage, complete.Message)
	assert.True(t, hasReason(complete.Reasons, "rubric_coverage"))

	result := outcome.Result()
	assert.True(t, result.ShouldAdvance)
	assert.True(t, result.IsComplete)
}

func TestNextTurnJunkRedirectsWithoutModelCalls(t *testing.T) {
	t.Parallel()

	fake := llm.NewFakeClient().On("", readyEvaluation)
	outcome := NewService(fake).NextTurn(context.Background(), TurnInput{
		Template: urlShortenerTemplate(),
		Answer:   "asdfasdfasdfasdfasdfasdfasdfasdf",
	})

	require.Equal(t, models.TurnRedirect, outcome.Kind())
	result := outcome.Result()
	assert.Equal(t, unclearAnswerRedirect, result.Message)
	assert.False(t, result.ShouldAdvance)
	assert.Zero(t, fake.Calls())
}

func TestNextTurnFollowup(t *testing.T) {
	t.Parallel()

	fake := llm.NewFakeClient().
		On("screening", relevantVerdict).
		On("evaluating a candidate's answer", lowEvaluation).
		On("probing follow-up", `"How would you invalidate stale entries?"`)
	retriever := &fakeRetriever{chunks: []string{"Caches trade freshness for latency.", "Write-through keeps caches warm."}}

	outcome := NewService(fake, WithReferences(retriever)).NextTurn(context.Background(), TurnInput{
		Template:      urlShortenerTemplate(),
		QuestionIndex: 1,
		Answer:        "Put a read-through layer in front of the primary",
	})

	require.Equal(t, models.TurnFollowup, outcome.Kind())
	followup := outcome.(models.FollowupTurn)
	assert.Equal(t, "How would you invalidate stale entries?", followup.Message)
	assert.Equal(t, []string{"Discuss cache eviction"}, followup.Hints)
	assert.Equal(t, 30, followup.Completion)

	require.Len(t, retriever.topics, 1)
	assert.Equal(t, []string{"caching", "replication"}, retriever.topics[0])

	prompts := fake.Prompts()
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[2], "Write-through keeps caches warm.")
}

func TestNextTurnAdvanceAnnouncesNextQuestion(t *testing.T) {
	t.Parallel()

	fake := llm.NewFakeClient().
		On("screening", relevantVerdict).
		On("evaluating a candidate's answer", readyEvaluation)

	outcome := NewService(fake).NextTurn(context.Background(), TurnInput{
		Template: urlShortenerTemplate(),
		Answer:   "Base62 encode an auto-increment id from a ticket server",
	})

	require.Equal(t, models.TurnAdvance, outcome.Kind())
	advance := outcome.(models.AdvanceTurn)
	assert.Equal(t, 1, advance.NextQuestionIndex)
	assert.Equal(t, advancePrefix+"How would you scale reads?", advance.Message)
	assert.False(t, advance.Skipped)

	result := outcome.Result()
	require.NotNil(t, result.NextQuestionIndex)
	assert.Equal(t, 1, *result.NextQuestionIndex)
}

func TestNextTurnFollowupFailureUsesGenericQuestion(t *testing.T) {
	t.Parallel()

	fake := llm.NewFakeClient().
		On("screening", relevantVerdict).
		On("evaluating a candidate's answer", lowEvaluation).
		OnError("probing follow-up", errors.New("model overloaded"))

	outcome := NewService(fake).NextTurn(context.Background(), TurnInput{
		Template: urlShortenerTemplate(),
		Answer:   "Base62 encode an auto-increment id",
	})

	require.Equal(t, models.TurnFollowup, outcome.Kind())
	assert.Equal(t, genericFollowup, outcome.Result().Message)
}

func TestNextTurnEvaluationFailureStillFollowsUp(t *testing.T) {
	t.Parallel()

	fake := llm.NewFakeClient().
		On("screening", relevantVerdict).
		OnError("evaluating a candidate's answer", errors.New("timeout")).
		On("probing follow-up", "What happens when two URLs hash to the same code?")

	outcome := NewService(fake).NextTurn(context.Background(), TurnInput{
		Template: urlShortenerTemplate(),
		Answer:   "Base62 encode an auto-increment id",
	})

	require.Equal(t, models.TurnFollowup, outcome.Kind())
	followup := outcome.(models.FollowupTurn)
	assert.Equal(t, "What happens when two URLs hash to the same code?", followup.Message)
	assert.Empty(t, followup.Hints)
	assert.NotNil(t, followup.Result().Hints)
}

func TestNextTurnModelDownEventuallyAdvances(t *testing.T) {
	t.Parallel()

	service := NewService(llm.NewFakeClient().FailAll(errors.New("connection refused")))
	template := urlShortenerTemplate()

	var history []models.Interaction
	var outcome models.TurnOutcome
	for i := 0; i < maxResponsesPerQuestion; i++ {
		answer := strings.Repeat("x", i) + "we store every mapping in a database table"
		outcome = service.NextTurn(context.Background(), TurnInput{Template: template, Answer: answer, History: history})
		history = append(history, response(0, answer))
	}

	assert.Equal(t, models.TurnAdvance, outcome.Kind())
}

func TestNextTurnUntaggedHistoryModelDownAdvances(t *testing.T) {
	t.Parallel()

	service := NewService(llm.NewFakeClient().FailAll(errors.New("connection refused")))
	template := urlShortenerTemplate()
	answer := "we store every mapping in a database table"

	history := []models.Interaction{untagged(models.MessageAIQuestion, template.Questions[0].Text)}
	var outcome models.TurnOutcome
	turns := 0
	for turns < maxResponsesPerQuestion {
		turns++
		outcome = service.NextTurn(context.Background(), TurnInput{Template: template, Answer: answer, History: history})
		if outcome.Kind() != models.TurnFollowup {
			break
		}
		history = append(history,
			untagged(models.MessageUserResponse, answer),
			untagged(models.MessageAIQuestion, outcome.Result().Message),
		)
	}

	require.Equal(t, models.TurnAdvance, outcome.Kind())
	assert.Equal(t, 1, outcome.(models.AdvanceTurn).NextQuestionIndex)
	assert.LessOrEqual(t, turns, maxResponsesPerQuestion)
}

func TestWithCurrentResponse(t *testing.T) {
	t.Parallel()

	recorded := []models.Interaction{asked(0, "q"), response(0, "  use a cache  ")}
	assert.Len(t, withCurrentResponse(recorded, 0, "use a cache"), 2)

	appended := withCurrentResponse(recorded, 0, "add a queue")
	require.Len(t, appended, 3)
	assert.True(t, appended[2].TaggedWith(0))
	assert.Len(t, recorded, 2, "input history must not be modified")

	repeated := append([]models.Interaction{}, recorded...)
	repeated = append(repeated, asked(0, "Which cache would you pick?"))
	repeatedOut := withCurrentResponse(repeated, 0, "use a cache")
	require.Len(t, repeatedOut, 4, "a repeated answer after a follow-up is a new response")
	assert.True(t, repeatedOut[3].TaggedWith(0))

	otherQuestion := withCurrentResponse(recorded, 1, "use a cache")
	require.Len(t, otherQuestion, 3)
	assert.True(t, otherQuestion[2].TaggedWith(1))

	legacy := []models.Interaction{untagged(models.MessageAIQuestion, "q")}
	out := withCurrentResponse(legacy, 0, "use a cache")
	require.Len(t, out, 2)
	assert.Nil(t, out[1].Metadata.QuestionIndex)

	fresh := withCurrentResponse(nil, 0, "use a cache")
	require.Len(t, fresh, 1)
	assert.True(t, fresh[0].TaggedWith(0))
}

func TestProcessTurnSessionStatus(t *testing.T) {
	t.Parallel()

	fake := llm.NewFakeClient()
	service := NewService(fake)
	template := urlShortenerTemplate()

	outcome := service.ProcessTurn(context.Background(), template, nil, "answer", nil, nil)
	assert.Equal(t, models.TurnError, outcome.Kind())

	completed := &models.InterviewSession{ID: "s1", Status: models.SessionCompleted}
	outcome = service.ProcessTurn(context.Background(), template, completed, "answer", nil, nil)
	assert.Equal(t, models.TurnComplete, outcome.Kind())

	terminated := &models.InterviewSession{ID: "s2", Status: models.SessionTerminated}
	outcome = service.ProcessTurn(context.Background(), template, terminated, "answer", nil, nil)
	assert.Equal(t, models.TurnError, outcome.Kind())

	live := &models.InterviewSession{ID: "s3", Status: models.SessionInProgress}
	outcome = service.ProcessTurn(context.Background(), template, live, "short", nil, nil)
	assert.Equal(t, models.TurnRedirect, outcome.Kind())

	assert.Zero(t, fake.Calls())
}

func TestGetDiagramSuggestions(t *testing.T) {
	t.Parallel()

	elements := shapes(models.ElementRectangle, 2)
	question := &models.Question{Text: "Sketch the write path"}

	fake := llm.NewFakeClient().On("reviewing a candidate's architecture diagram", `["Add a database", "Connect the API to storage"]`)
	suggestions := NewService(fake).GetDiagramSuggestions(context.Background(), elements, question)
	assert.Equal(t, []string{"Add a database", "Connect the API to storage"}, suggestions)

	down := llm.NewFakeClient().FailAll(errors.New("connection refused"))
	suggestions = NewService(down).GetDiagramSuggestions(context.Background(), elements, question)
	assert.Contains(t, suggestions, "Consider adding: "+missingStorage)
	assert.Contains(t, suggestions, "Consider adding: "+missingCDN)

	prose := llm.NewFakeClient().On("reviewing", "You should add more boxes.")
	suggestions = NewService(prose).GetDiagramSuggestions(context.Background(), elements, nil)
	assert.Contains(t, suggestions, "Consider adding: "+missingAPI)
}
