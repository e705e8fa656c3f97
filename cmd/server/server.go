package main

import (
	"fmt"
	"log"
	"net/http"

	"stash/config"
	"stash/db"
	"stash/handlers"
	"stash/services"
	"stash/services/interview"
	"stash/services/llm"
	"stash/services/pinecone"

	"github.com/gorilla/mux"
)

type repositories struct {
	templates db.TemplateRepository
	sessions  db.SessionRepository
	reports   db.ReportRepository
	close     func()
}

func main() {
	cfg := config.Load()

	repos, err := openRepositories(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer repos.close()

	model, err := llm.NewClient(llm.ClientConfig{
		Provider:    cfg.Model.Provider,
		Endpoint:    cfg.Model.Endpoint,
		ModelName:   cfg.Model.Name,
		APIKey:      cfg.APIKeyForProvider(),
		Temperature: cfg.Model.Temperature,
		TimeoutMs:   cfg.Model.TimeoutMs,
		MaxRetries:  cfg.Model.MaxRetries,
	})
	if err != nil {
		log.Fatalf("Failed to initialize model client: %v", err)
	}

	var opts []interview.Option
	if cfg.PineconeAPIKey != "" && cfg.OpenAIAPIKey != "" {
		rubrics, err := pinecone.NewService(cfg.PineconeAPIKey, cfg.OpenAIAPIKey, cfg.PineconeIndexName)
		if err != nil {
			log.Fatalf("Failed to initialize rubric index service: %v", err)
		}
		opts = append(opts, interview.WithReferences(rubrics))
	} else {
		log.Printf("[INFO] PINECONE_API_KEY or OPENAI_API_KEY not set, running without reference rubrics")
	}
	interviewer := interview.NewService(model, opts...)

	templateService, err := services.NewTemplateService(repos.templates)
	if err != nil {
		log.Fatalf("Failed to initialize template service: %v", err)
	}
	if cfg.TemplatesDir != "" {
		loaded, err := templateService.LoadTemplatesFromDir(cfg.TemplatesDir)
		if err != nil {
			log.Fatalf("Failed to load templates from %s: %v", cfg.TemplatesDir, err)
		}
		log.Printf("[INFO] Loaded %d templates from %s", loaded, cfg.TemplatesDir)
	}
	templateHandler := handlers.NewTemplateHandler(templateService)

	sessionService := services.NewSessionService(repos.sessions, templateService, interviewer)
	reportService := services.NewReportService(repos.reports, sessionService, interviewer)
	interviewHandler := handlers.NewInterviewHandler(sessionService, reportService)

	router := mux.NewRouter()

	router.Use(corsMiddleware)
	router.Use(jsonMiddleware)

	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("OPTIONS")

	templateHandler.RegisterRoutes(router)
	interviewHandler.RegisterRoutes(router)

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	addr := ":" + cfg.Port
	fmt.Printf("Server starting on port %s\n", cfg.Port)

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// openRepositories connects to Postgres, or falls back to an in-memory store when no URL is configured.
func openRepositories(databaseURL string) (*repositories, error) {
	if databaseURL == "" {
		log.Printf("[WARN] DB_URL not set, sessions will be kept in memory only")
		store := db.NewMemoryStore()
		return &repositories{templates: store, sessions: store, reports: store, close: func() {}}, nil
	}

	templateRepo, err := db.NewPostgresTemplateRepository(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open template repository: %w", err)
	}
	sessionRepo, err := db.NewPostgresSessionRepository(databaseURL)
	if err != nil {
		templateRepo.Close()
		return nil, fmt.Errorf("failed to open session repository: %w", err)
	}
	reportRepo, err := db.NewPostgresReportRepository(databaseURL)
	if err != nil {
		templateRepo.Close()
		sessionRepo.Close()
		return nil, fmt.Errorf("failed to open report repository: %w", err)
	}

	return &repositories{
		templates: templateRepo,
		sessions:  sessionRepo,
		reports:   reportRepo,
		close: func() {
			templateRepo.Close()
			sessionRepo.Close()
			reportRepo.Close()
		},
	}, nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}
