package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"stash/db"
	"stash/models"
	"stash/services"
	"stash/services/interview"
	"stash/services/llm"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, model llm.Client) *mux.Router {
	t.Helper()

	store := db.NewMemoryStore()
	templates, err := services.NewTemplateService(store)
	require.NoError(t, err)

	interviewer := interview.NewService(model)
	sessions := services.NewSessionService(store, templates, interviewer)
	reports := services.NewReportService(store, sessions, interviewer)

	router := mux.NewRouter()
	NewTemplateHandler(templates).RegisterRoutes(router)
	NewInterviewHandler(sessions, reports).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var rateLimiterTemplate = models.CreateTemplateRequest{
	Title:           "Design a Rate Limiter",
	DifficultyLevel: "hard",
	Questions: []models.Question{
		{Text: "Which algorithm would you use?", EvaluationCriteria: []string{"token bucket", "sliding window"}},
		{Text: "How would you share limits across nodes?", EvaluationCriteria: []string{"redis", "consistency"}},
	},
}

func TestTemplateRoutes(t *testing.T) {
	router := newTestRouter(t, llm.NewFakeClient())

	rec := doJSON(t, router, http.MethodPost, "/templates", rateLimiterTemplate)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.InterviewTemplate](t, rec)
	assert.Equal(t, 45, created.EstimatedDuration)

	rec = doJSON(t, router, http.MethodPost, "/templates", models.CreateTemplateRequest{Title: "Empty"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/templates/search?q=limiter,%20kafka", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.InterviewTemplate](t, rec), 1)

	rec = doJSON(t, router, http.MethodGet, "/templates/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/templates/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.InterviewTemplate](t, rec))
}

func TestInterviewRoutes(t *testing.T) {
	model := llm.NewFakeClient().
		On("screening", `{"isRelevant": true, "reason": "ok"}`).
		On("evaluating a candidate's answer", `{"completion": 40, "readyForNext": false, "hints": ["Name the data structure"]}`).
		On("probing follow-up", "Where would the counters live?").
		On("writing the final evaluation", "Partial interview.")
	router := newTestRouter(t, model)

	rec := doJSON(t, router, http.MethodPost, "/templates", rateLimiterTemplate)
	require.Equal(t, http.StatusCreated, rec.Code)
	template := decode[models.InterviewTemplate](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/sessions", models.StartSessionRequest{TemplateID: template.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decode[models.StartSessionResponse](t, rec)
	assert.Equal(t, "Which algorithm would you use?", started.Question)
	id := started.Session.ID

	rec = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/responses", models.SubmitResponseRequest{Content: "I would count requests per user in a fixed window"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	turn := decode[models.SubmitResponseResponse](t, rec)
	assert.Equal(t, models.TurnFollowup, turn.Result.Type)
	assert.Equal(t, "Where would the counters live?", turn.Result.Message)
	assert.Equal(t, []string{"Name the data structure"}, turn.Result.Hints)

	rec = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/responses", models.SubmitResponseRequest{Content: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/sessions/"+id+"/diagram", models.UpdateDiagramRequest{
		Elements: []models.Element{{Type: models.ElementRectangle}, {Type: models.ElementText, Text: "Redis"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[models.DiagramAnalysis](t, rec).HasDataStores)

	rec = doJSON(t, router, http.MethodGet, "/sessions/"+id+"/transcript", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Interaction](t, rec), 3)

	rec = doJSON(t, router, http.MethodGet, "/sessions?status=in_progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.InterviewSession](t, rec), 1)

	rec = doJSON(t, router, http.MethodGet, "/sessions?status=paused", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/terminate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/terminate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/sessions/"+id+"/report", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[models.FinalReport](t, rec)
	assert.Equal(t, "Partial interview.", report.Narrative)
	assert.Equal(t, 0, report.Scores.QuestionsCompleted)

	rec = doJSON(t, router, http.MethodGet, "/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
