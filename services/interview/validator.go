package interview

import (
	"context"
	"log"
	"regexp"
	"strings"
	"unicode"

	"stash/models"
	"stash/services/llm"

	"github.com/samber/lo"
)

const (
	minAnswerLength       = 10
	keywordFallbackLength = 20
	minAlphanumericRatio  = 0.3
)

var (
	alphaRunRegex   = regexp.MustCompile(`^[A-Za-z]{20,}$`)
	digitRunRegex   = regexp.MustCompile(`^[0-9]{10,}$`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

var systemDesignVocabulary = []string{
	"database", "cache", "server", "api", "load balancer", "scale", "scalability",
	"latency", "throughput", "availability", "consistency", "partition", "shard",
	"replication", "replica", "queue", "microservice", "service", "storage", "cdn",
	"network", "request", "client", "data", "index", "traffic", "redis", "sql",
	"nosql", "kafka", "distributed", "architecture", "design", "system", "user",
	"performance", "endpoint", "message",
}

type ResponseValidator struct {
	model llm.Client
}

func NewResponseValidator(model llm.Client) *ResponseValidator {
	return &ResponseValidator{model: model}
}

// Validate gates a candidate answer before it is evaluated. It never fails; model errors fall back to a keyword check.
func (v *ResponseValidator) Validate(ctx context.Context, answer string, question *models.Question, template *models.InterviewTemplate) models.ValidationResult {
	if question == nil || template == nil {
		log.Printf("[WARN] Validating answer without question context, accepting it")
		return models.ValidationResult{IsValid: true}
	}

	trimmed := strings.TrimSpace(answer)
	if len([]rune(trimmed)) < minAnswerLength {
		return models.ValidationResult{IsValid: false, RedirectMessage: briefAnswerRedirect}
	}

	if looksLikeJunk(trimmed) {
		return models.ValidationResult{IsValid: false, RedirectMessage: unclearAnswerRedirect}
	}

	verdict, err := v.checkRelevance(ctx, template, question, trimmed)
	if err != nil {
		log.Printf("[WARN] Relevance check failed, using keyword fallback: %v", err)
		return keywordFallback(trimmed)
	}

	if !verdict.IsRelevant {
		log.Printf("[INFO] Answer judged off-topic: %s", verdict.Reason)
		redirect := strings.TrimSpace(verdict.SuggestedRedirect)
		if redirect == "" {
			redirect = offTopicRedirect
		}
		return models.ValidationResult{IsValid: false, RedirectMessage: redirect}
	}

	return models.ValidationResult{IsValid: true}
}

func (v *ResponseValidator) checkRelevance(ctx context.Context, template *models.InterviewTemplate, question *models.Question, answer string) (verdict models.RelevanceVerdict, err error) {
	if v.model == nil {
		return verdict, errNoModel
	}

	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	raw, err := v.model.Complete(ctx, buildRelevancePrompt(template, question, answer), relevanceMaxTokens)
	if err != nil {
		return verdict, err
	}

	return ParseRelevanceVerdict(raw)
}

func looksLikeJunk(text string) bool {
	compact := whitespaceRegex.ReplaceAllString(text, "")
	if compact == "" {
		return true
	}

	runes := []rune(compact)
	alnum := lo.CountBy(runes, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
	if float64(alnum)/float64(len(runes)) < minAlphanumericRatio {
		return true
	}

	return alphaRunRegex.MatchString(text) || digitRunRegex.MatchString(text)
}

func keywordFallback(text string) models.ValidationResult {
	lower := strings.ToLower(text)
	matched := lo.ContainsBy(systemDesignVocabulary, func(term string) bool {
		return strings.Contains(lower, term)
	})

	if !matched && len(text) > keywordFallbackLength {
		return models.ValidationResult{IsValid: false, RedirectMessage: offTopicRedirect}
	}

	return models.ValidationResult{IsValid: true}
}
