package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"stash/models"
	"stash/services"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

type TemplateHandler struct {
	service *services.TemplateService
}

func NewTemplateHandler(service *services.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

func (h *TemplateHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/templates", h.CreateTemplate).Methods("POST")
	router.HandleFunc("/templates", h.GetAllTemplates).Methods("GET")
	router.HandleFunc("/templates/search", h.SearchTemplates).Methods("GET")
	router.HandleFunc("/templates/{id:[0-9]+}", h.GetTemplateByID).Methods("GET")
	router.HandleFunc("/templates/{id:[0-9]+}", h.DeleteTemplate).Methods("DELETE")
}

func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	template, err := h.service.CreateTemplate(&req)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSONResponse(w, http.StatusCreated, template)
}

func (h *TemplateHandler) GetAllTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.GetAllTemplates()
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve templates")
		return
	}

	writeJSONResponse(w, http.StatusOK, templates)
}

// SearchTemplates takes a comma separated q parameter.
func (h *TemplateHandler) SearchTemplates(w http.ResponseWriter, r *http.Request) {
	terms := lo.Compact(lo.Map(strings.Split(r.URL.Query().Get("q"), ","), func(term string, _ int) string {
		return strings.TrimSpace(term)
	}))

	templates, err := h.service.SearchTemplates(terms)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to search templates")
		return
	}

	writeJSONResponse(w, http.StatusOK, templates)
}

func (h *TemplateHandler) GetTemplateByID(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid template ID")
		return
	}

	template, err := h.service.GetTemplateByID(id)
	if err != nil {
		if containsNotFound(err.Error()) {
			writeErrorResponse(w, http.StatusNotFound, err.Error())
		} else {
			writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve template")
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, template)
}

func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid template ID")
		return
	}

	err = h.service.DeleteTemplate(id)
	if err != nil {
		if containsNotFound(err.Error()) {
			writeErrorResponse(w, http.StatusNotFound, err.Error())
		} else {
			writeErrorResponse(w, http.StatusInternalServerError, "Failed to delete template")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func containsNotFound(message string) bool {
	return strings.HasSuffix(message, "not found")
}
