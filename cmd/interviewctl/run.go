package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"stash/config"
	"stash/db"
	"stash/models"
	"stash/services"
	"stash/services/interview"
	"stash/services/llm"

	"github.com/spf13/cobra"
)

type runOptions struct {
	templatePath string
	diagramPath  string
	provider     string
	modelName    string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Conduct an interview on stdin/stdout using a template file",
		Long:  "Conduct an interview on stdin/stdout. Type /quit to end early. The final report is printed when the interview ends.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInterview(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.templatePath, "template", "t", "", "path to a YAML interview template")
	cmd.Flags().StringVarP(&opts.diagramPath, "diagram", "d", "", "optional JSON whiteboard snapshot to attach")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "model provider override (ollama, openai, anthropic)")
	cmd.Flags().StringVar(&opts.modelName, "model", "", "model name override")
	cmd.MarkFlagRequired("template")

	return cmd
}

func runInterview(cmd *cobra.Command, opts *runOptions) error {
	cfg := config.Load()
	if opts.provider != "" {
		cfg.Model.Provider = strings.ToLower(opts.provider)
	}
	if opts.modelName != "" {
		cfg.Model.Name = opts.modelName
	}

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
		return err
	}

	store := db.NewMemoryStore()
	templates, err := services.NewTemplateService(store)
	if err != nil {
		return err
	}
	req, err := services.ReadTemplateFile(opts.templatePath)
	if err != nil {
		return err
	}
	template, err := templates.CreateTemplate(req)
	if err != nil {
		return err
	}

	interviewer := interview.NewService(model)
	sessions := services.NewSessionService(store, templates, interviewer)
	reports := services.NewReportService(store, sessions, interviewer)

	started, err := sessions.StartSession(&models.StartSessionRequest{TemplateID: template.ID})
	if err != nil {
		return err
	}
	sessionID := started.Session.ID

	if opts.diagramPath != "" {
		if err := attachDiagram(sessions, sessionID, opts.diagramPath); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d questions, %s)\n\n", template.Title, len(template.Questions), template.DifficultyLevel)
	fmt.Fprintf(out, "Interviewer: %s\n", started.Question)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			if _, err := sessions.TerminateSession(sessionID); err != nil {
				return err
			}
			break
		}

		resp, err := sessions.SubmitResponse(cmd.Context(), sessionID, &models.SubmitResponseRequest{Content: line})
		if err != nil {
			return err
		}
		printTurn(out, resp.Result)

		if resp.Session.Status != models.SessionInProgress {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	report, err := reports.GetFinalReport(cmd.Context(), sessionID, false)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n\nOverall: %.1f/10 (%s)\n", report.Narrative, report.Scores.OverallScore, report.Scores.SeniorityLabel)
	return nil
}

func printTurn(out io.Writer, result models.TurnResult) {
	fmt.Fprintf(out, "Interviewer: %s\n", result.Message)
	for _, hint := range result.Hints {
		fmt.Fprintf(out, "  hint: %s\n", hint)
	}
}

func attachDiagram(sessions *services.SessionService, sessionID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read diagram: %w", err)
	}

	var req models.UpdateDiagramRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to parse diagram: %w", err)
	}

	_, err = sessions.UpdateDiagram(sessionID, &req)
	return err
}
