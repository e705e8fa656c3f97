package db

import (
	"testing"
	"time"

	"stash/models"
)

var (
	_ TemplateRepository = (*MemoryStore)(nil)
	_ SessionRepository  = (*MemoryStore)(nil)
	_ ReportRepository   = (*MemoryStore)(nil)

	_ TemplateRepository = (*PostgresTemplateRepository)(nil)
	_ SessionRepository  = (*PostgresSessionRepository)(nil)
	_ ReportRepository   = (*PostgresReportRepository)(nil)
)

func TestMemoryStoreSessions(t *testing.T) {
	store := NewMemoryStore()

	session := &models.InterviewSession{ID: "s1", TemplateID: 1, Status: models.SessionInProgress}
	if err := store.CreateSession(session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := store.CreateSession(session); err == nil {
		t.Errorf("CreateSession() with a duplicate id should fail")
	}

	next := 2
	if err := store.UpdateSession("s1", &models.UpdateSessionRequest{CurrentQuestionIndex: &next}); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}
	if err := store.UpdateSession("s1", &models.UpdateSessionRequest{}); err == nil {
		t.Errorf("UpdateSession() without fields should fail")
	}
	if err := store.UpdateSession("missing", &models.UpdateSessionRequest{CurrentQuestionIndex: &next}); err == nil {
		t.Errorf("UpdateSession() on an unknown session should fail")
	}

	got, err := store.GetSessionByID("s1")
	if err != nil {
		t.Fatalf("GetSessionByID() error = %v", err)
	}
	if got.CurrentQuestionIndex != 2 {
		t.Errorf("CurrentQuestionIndex = %d, expected 2", got.CurrentQuestionIndex)
	}

	got.Status = models.SessionCompleted
	if again, _ := store.GetSessionByID("s1"); again.Status != models.SessionInProgress {
		t.Errorf("mutating a returned session changed the stored copy")
	}

	completed := models.SessionCompleted
	if sessions, _ := store.GetSessions(&completed, nil); len(sessions) != 0 {
		t.Errorf("GetSessions(completed) = %d sessions, expected 0", len(sessions))
	}
	future := time.Now().Add(time.Hour)
	if sessions, _ := store.GetSessions(nil, &future); len(sessions) != 0 {
		t.Errorf("GetSessions(since future) = %d sessions, expected 0", len(sessions))
	}
	if sessions, _ := store.GetSessions(nil, nil); len(sessions) != 1 {
		t.Errorf("GetSessions() = %d sessions, expected 1", len(sessions))
	}
}

func TestMemoryStoreInteractionsAreOrdered(t *testing.T) {
	store := NewMemoryStore()
	if err := store.CreateSession(&models.InterviewSession{ID: "s1", Status: models.SessionInProgress}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	for _, content := range []string{"first", "second", "third"} {
		if err := store.AppendInteraction(&models.Interaction{SessionID: "s1", MessageType: models.MessageUserResponse, Content: content}); err != nil {
			t.Fatalf("AppendInteraction() error = %v", err)
		}
	}
	if err := store.AppendInteraction(&models.Interaction{SessionID: "missing"}); err == nil {
		t.Errorf("AppendInteraction() for an unknown session should fail")
	}

	interactions, _ := store.GetInteractions("s1")
	if len(interactions) != 3 {
		t.Fatalf("GetInteractions() = %d entries, expected 3", len(interactions))
	}
	for i, want := range []string{"first", "second", "third"} {
		if interactions[i].Content != want || interactions[i].ID != i+1 {
			t.Errorf("interactions[%d] = %+v, expected %q with id %d", i, interactions[i], want, i+1)
		}
	}
}

func TestMemoryStoreReports(t *testing.T) {
	store := NewMemoryStore()

	if report, err := store.GetReport("s1"); err != nil || report != nil {
		t.Fatalf("GetReport() on empty store = %v, %v", report, err)
	}

	if err := store.SaveReport(&models.FinalReport{SessionID: "s1", Narrative: "first"}); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	second := &models.FinalReport{SessionID: "s1", Narrative: "second"}
	if err := store.SaveReport(second); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if second.ID != 1 {
		t.Errorf("saving again should keep report id 1, got %d", second.ID)
	}

	report, _ := store.GetReport("s1")
	if report.Narrative != "second" {
		t.Errorf("Narrative = %q, expected the latest save", report.Narrative)
	}
}
