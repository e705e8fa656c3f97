package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stash/db"
	"stash/models"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	templateCacheSize        = 128
	defaultDifficulty        = "medium"
	defaultEstimatedDuration = 45
)

var difficultyLevels = []string{"easy", "medium", "hard"}

type TemplateService struct {
	repo  db.TemplateRepository
	cache *lru.Cache[int, *models.InterviewTemplate]
}

func NewTemplateService(repo db.TemplateRepository) (*TemplateService, error) {
	cache, err := lru.New[int, *models.InterviewTemplate](templateCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}

	return &TemplateService{repo: repo, cache: cache}, nil
}

func (s *TemplateService) CreateTemplate(req *models.CreateTemplateRequest) (*models.InterviewTemplate, error) {
	log.Printf("[INFO] Starting template creation")

	if err := s.validateCreateRequest(req); err != nil {
		log.Printf("[ERROR] Template creation validation failed: %v", err)
		return nil, err
	}

	template := &models.InterviewTemplate{
		Title:             strings.TrimSpace(req.Title),
		DifficultyLevel:   strings.ToLower(strings.TrimSpace(req.DifficultyLevel)),
		Questions:         normalizeQuestions(req.Questions),
		EstimatedDuration: req.EstimatedDuration,
	}
	if template.DifficultyLevel == "" {
		template.DifficultyLevel = defaultDifficulty
	}
	if template.EstimatedDuration <= 0 {
		template.EstimatedDuration = defaultEstimatedDuration
	}

	if err := s.repo.CreateTemplate(template); err != nil {
		log.Printf("[ERROR] Failed to create template in repository: %v", err)
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	log.Printf("[INFO] Successfully created template with ID %d (%d questions)", template.ID, len(template.Questions))
	return template, nil
}

func (s *TemplateService) GetTemplateByID(id int) (*models.InterviewTemplate, error) {
	if id <= 0 {
		log.Printf("[ERROR] Invalid template ID provided: %d", id)
		return nil, fmt.Errorf("invalid template ID: %d", id)
	}

	if template, ok := s.cache.Get(id); ok {
		return template, nil
	}

	template, err := s.repo.GetTemplateByID(id)
	if err != nil {
		log.Printf("[ERROR] Failed to get template by ID %d: %v", id, err)
		return nil, err
	}

	s.cache.Add(id, template)
	return template, nil
}

func (s *TemplateService) GetAllTemplates() ([]*models.InterviewTemplate, error) {
	log.Printf("[INFO] Starting get all templates")

	templates, err := s.repo.GetAllTemplates()
	if err != nil {
		log.Printf("[ERROR] Failed to get all templates: %v", err)
		return nil, fmt.Errorf("failed to get templates: %w", err)
	}

	log.Printf("[INFO] Successfully retrieved %d templates", len(templates))
	return templates, nil
}

func (s *TemplateService) DeleteTemplate(id int) error {
	log.Printf("[INFO] Starting delete template with ID %d", id)

	if id <= 0 {
		log.Printf("[ERROR] Invalid template ID provided for deletion: %d", id)
		return fmt.Errorf("invalid template ID: %d", id)
	}

	if err := s.repo.DeleteTemplate(id); err != nil {
		log.Printf("[ERROR] Failed to delete template ID %d: %v", id, err)
		return err
	}
	s.cache.Remove(id)

	log.Printf("[INFO] Successfully deleted template with ID %d", id)
	return nil
}

func (s *TemplateService) validateCreateRequest(req *models.CreateTemplateRequest) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("title is required")
	}

	if len(req.Questions) == 0 {
		return fmt.Errorf("at least one question is required")
	}

	for i, q := range req.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d has no text", i+1)
		}
	}

	difficulty := strings.ToLower(strings.TrimSpace(req.DifficultyLevel))
	if difficulty != "" && !lo.Contains(difficultyLevels, difficulty) {
		return fmt.Errorf("difficulty_level must be one of %s", strings.Join(difficultyLevels, ", "))
	}

	return nil
}

func normalizeQuestions(questions []models.Question) []models.Question {
	out := make([]models.Question, len(questions))
	for i, q := range questions {
		criteria := make([]string, 0, len(q.EvaluationCriteria))
		for _, c := range q.EvaluationCriteria {
			if c = strings.TrimSpace(c); c != "" {
				criteria = append(criteria, c)
			}
		}
		out[i] = models.Question{
			Text:               strings.TrimSpace(q.Text),
			EvaluationCriteria: criteria,
			ReferenceNotes:     strings.TrimSpace(q.ReferenceNotes),
		}
	}
	return out
}

// SearchTemplates returns templates matching any term, closest matches first.
func (s *TemplateService) SearchTemplates(searchTerms []string) ([]*models.InterviewTemplate, error) {
	log.Printf("[INFO] Starting template search with %d search terms", len(searchTerms))

	templates, err := s.GetAllTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to get templates for search: %w", err)
	}

	if len(searchTerms) == 0 {
		log.Printf("[INFO] No search terms provided, returning all %d templates", len(templates))
		return templates, nil
	}

	type scored struct {
		template *models.InterviewTemplate
		distance int
	}
	var matches []scored
	for _, template := range templates {
		if distance, ok := s.templateMatchesSearch(template, searchTerms); ok {
			matches = append(matches, scored{template: template, distance: distance})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })

	matchingTemplates := make([]*models.InterviewTemplate, len(matches))
	for i, m := range matches {
		matchingTemplates[i] = m.template
	}

	log.Printf("[INFO] Found %d templates matching search criteria", len(matchingTemplates))
	return matchingTemplates, nil
}

// templateMatchesSearch reports whether any term matches the template's title, questions or criteria,
// along with the smallest edit distance seen.
func (s *TemplateService) templateMatchesSearch(template *models.InterviewTemplate, searchTerms []string) (int, bool) {
	words := searchableWords(template)
	text := strings.ToLower(strings.Join(words, " "))

	best, found := 0, false
	for _, term := range searchTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}

		// Exact substring match
		if strings.Contains(text, term) {
			return 0, true
		}

		ranks := fuzzy.RankFindFold(term, words)
		if len(ranks) == 0 {
			continue
		}
		sort.Sort(ranks)
		if !found || ranks[0].Distance < best {
			best, found = ranks[0].Distance, true
		}
	}

	return best, found
}

func searchableWords(template *models.InterviewTemplate) []string {
	parts := []string{template.Title, template.DifficultyLevel}
	for _, q := range template.Questions {
		parts = append(parts, q.Text)
		parts = append(parts, q.EvaluationCriteria...)
	}

	var words []string
	for _, word := range strings.Fields(strings.ToLower(strings.Join(parts, " "))) {
		cleanWord := strings.Trim(word, ".,!?;:()[]{}\"'")
		if len(cleanWord) > 0 {
			words = append(words, cleanWord)
		}
	}
	return words
}

// LoadTemplatesFromDir seeds templates from *.yaml files, skipping titles that already exist.
func (s *TemplateService) LoadTemplatesFromDir(dir string) (int, error) {
	log.Printf("[INFO] Loading interview templates from %s", dir)

	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return 0, fmt.Errorf("failed to list templates: %w", err)
	}
	ymlPaths, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return 0, fmt.Errorf("failed to list templates: %w", err)
	}
	paths = append(paths, ymlPaths...)
	sort.Strings(paths)

	existing, err := s.GetAllTemplates()
	if err != nil {
		return 0, err
	}
	titles := make(map[string]bool, len(existing))
	for _, t := range existing {
		titles[strings.ToLower(t.Title)] = true
	}

	loaded := 0
	for _, path := range paths {
		req, err := ReadTemplateFile(path)
		if err != nil {
			return loaded, err
		}

		if titles[strings.ToLower(strings.TrimSpace(req.Title))] {
			log.Printf("[INFO] Template %q already exists, skipping %s", req.Title, path)
			continue
		}

		if _, err := s.CreateTemplate(req); err != nil {
			return loaded, fmt.Errorf("failed to load template %s: %w", path, err)
		}
		titles[strings.ToLower(strings.TrimSpace(req.Title))] = true
		loaded++
	}

	log.Printf("[INFO] Loaded %d new templates from %s", loaded, dir)
	return loaded, nil
}

func ReadTemplateFile(path string) (*models.CreateTemplateRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}

	var template models.InterviewTemplate
	if err := yaml.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("failed to parse template file %s: %w", path, err)
	}

	return &models.CreateTemplateRequest{
		Title:             template.Title,
		DifficultyLevel:   template.DifficultyLevel,
		Questions:         template.Questions,
		EstimatedDuration: template.EstimatedDuration,
	}, nil
}
