package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stash/models"
	"stash/services"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

var sessionStatuses = []models.SessionStatus{
	models.SessionInProgress, models.SessionCompleted, models.SessionTerminated,
}

type InterviewHandler struct {
	sessions *services.SessionService
	reports  *services.ReportService
}

func NewInterviewHandler(sessions *services.SessionService, reports *services.ReportService) *InterviewHandler {
	return &InterviewHandler{sessions: sessions, reports: reports}
}

func (h *InterviewHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sessions", h.StartSession).Methods("POST")
	router.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	router.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	router.HandleFunc("/sessions/{id}/transcript", h.GetTranscript).Methods("GET")
	router.HandleFunc("/sessions/{id}/responses", h.SubmitResponse).Methods("POST")
	router.HandleFunc("/sessions/{id}/diagram", h.UpdateDiagram).Methods("PUT")
	router.HandleFunc("/sessions/{id}/diagram/suggestions", h.GetDiagramSuggestions).Methods("GET")
	router.HandleFunc("/sessions/{id}/report", h.GetFinalReport).Methods("GET")
	router.HandleFunc("/sessions/{id}/terminate", h.TerminateSession).Methods("POST")
}

func (h *InterviewHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	log.Printf("[INFO] Received start session request")

	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[ERROR] Failed to decode start session JSON: %v", err)
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	resp, err := h.sessions.StartSession(&req)
	if err != nil {
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}

	writeJSONResponse(w, http.StatusCreated, resp)
}

// ListSessions accepts optional status and since (RFC 3339) filters.
func (h *InterviewHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var status *models.SessionStatus
	if raw := query.Get("status"); raw != "" {
		s := models.SessionStatus(raw)
		if !lo.Contains(sessionStatuses, s) {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		status = &s
	}

	var since *time.Time
	if raw := query.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid since filter, expected RFC 3339")
			return
		}
		since = &t
	}

	sessions, err := h.sessions.ListSessions(status, since)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve sessions")
		return
	}

	writeJSONResponse(w, http.StatusOK, sessions)
}

func (h *InterviewHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetSession(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, session)
}

func (h *InterviewHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	interactions, err := h.sessions.GetTranscript(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, interactions)
}

func (h *InterviewHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("[INFO] Received response for session %s", id)

	var req models.SubmitResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[ERROR] Failed to decode response JSON: %v", err)
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeErrorResponse(w, http.StatusBadRequest, "content is required")
		return
	}

	resp, err := h.sessions.SubmitResponse(r.Context(), id, &req)
	if err != nil {
		log.Printf("[ERROR] Turn for session %s failed: %v", id, err)
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *InterviewHandler) UpdateDiagram(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateDiagramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	analysis, err := h.sessions.UpdateDiagram(mux.Vars(r)["id"], &req)
	if err != nil {
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}

	writeJSONResponse(w, http.StatusOK, analysis)
}

func (h *InterviewHandler) GetDiagramSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.sessions.GetDiagramSuggestions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, suggestions)
}

func (h *InterviewHandler) GetFinalReport(w http.ResponseWriter, r *http.Request) {
	regenerate := false
	if raw := r.URL.Query().Get("regenerate"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid regenerate flag")
			return
		}
		regenerate = parsed
	}

	report, err := h.reports.GetFinalReport(r.Context(), mux.Vars(r)["id"], regenerate)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, report)
}

func (h *InterviewHandler) TerminateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.TerminateSession(mux.Vars(r)["id"])
	if err != nil {
		if strings.Contains(err.Error(), "already") {
			writeErrorResponse(w, http.StatusConflict, err.Error())
			return
		}
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, session)
}

func writeServiceError(w http.ResponseWriter, err error, fallback int) {
	if containsNotFound(err.Error()) {
		writeErrorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	writeErrorResponse(w, fallback, err.Error())
}
