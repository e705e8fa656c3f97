package interview

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"stash/models"

	"github.com/samber/lo"
)

const defaultCompletion = 65

var defaultHints = []string{
	"Consider discussing scalability and how the system handles growth",
	"Think about failure scenarios and how the design stays available",
}

var (
	errNoObject = errors.New("no JSON object found")

	objectSpanRegex    = regexp.MustCompile(`(?s)\{.*\}`)
	bareKeyRegex       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	bareValueRegex     = regexp.MustCompile(`(":\s*)([A-Za-z][A-Za-z0-9 _.'\-]*?)(\s*[,}\]])`)
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)
	quotedStringRegex  = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	hintsOpenRegex     = regexp.MustCompile(`"?hints"?\s*:\s*\[`)
	bareArrayRegex     = regexp.MustCompile(`\[[^\[\]{}"]*\]`)

	completionFieldRegex = regexp.MustCompile(`(?i)"?completion"?\s*[:=]\s*"?(-?\d+)`)
	readyFieldRegex      = regexp.MustCompile(`(?i)"?ready_?for_?next"?\s*[:=]\s*"?(true|false)`)
	hintsFieldRegex      = regexp.MustCompile(`(?is)"?hints"?\s*:\s*\[([^\]]*)`)
	relevantFieldRegex   = regexp.MustCompile(`(?i)"?is_?relevant"?\s*[:=]\s*"?(true|false)`)
	redirectFieldRegex   = regexp.MustCompile(`(?i)"?suggested_?redirect"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	arraySpanRegex       = regexp.MustCompile(`(?s)\[.*\]`)
)

// objectStrategy is one tier of JSON recovery. Tiers run in order until one succeeds.
type objectStrategy struct {
	name    string
	attempt func(text string) (map[string]any, error)
}

var objectStrategies = []objectStrategy{
	{name: "direct", attempt: parseDirect},
	{name: "embedded", attempt: parseEmbeddedObject},
	{name: "repaired", attempt: parseRepaired},
}

func extractObject(raw string) (map[string]any, string, error) {
	var errs []error
	for _, strategy := range objectStrategies {
		obj, err := strategy.attempt(raw)
		if err == nil {
			return obj, strategy.name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", strategy.name, err))
	}
	return nil, "", errors.Join(errs...)
}

func parseDirect(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNoObject
	}
	return obj, nil
}

func parseEmbeddedObject(text string) (map[string]any, error) {
	candidate := objectCandidate(text)
	if candidate == "" {
		return nil, errNoObject
	}

	candidate = closeDanglingHints(candidate)
	candidate = balanceBraces(candidate)

	return parseDirect(candidate)
}

func parseRepaired(text string) (map[string]any, error) {
	candidate := objectCandidate(text)
	if candidate == "" {
		return nil, errNoObject
	}

	candidate = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(candidate)
	candidate = bareKeyRegex.ReplaceAllString(candidate, `$1"$2":`)
	candidate = bareValueRegex.ReplaceAllStringFunc(candidate, quoteBareValue)
	candidate = quoteBareArrayItems(candidate)
	candidate = trailingCommaRegex.ReplaceAllString(candidate, "$1")
	candidate = closeDanglingHints(candidate)
	candidate = balanceBraces(candidate)

	return parseDirect(candidate)
}

// objectCandidate returns the greedy {...} span, or everything from the first brace when the object never closes.
func objectCandidate(text string) string {
	if span := objectSpanRegex.FindString(text); span != "" {
		return span
	}
	if i := strings.Index(text, "{"); i >= 0 {
		return text[i:]
	}
	return ""
}

// quoteBareArrayItems quotes the items of arrays written without any quotes, like [use caching, add replicas].
func quoteBareArrayItems(text string) string {
	return bareArrayRegex.ReplaceAllStringFunc(text, func(match string) string {
		inner := strings.TrimSpace(match[1 : len(match)-1])
		if inner == "" {
			return match
		}
		items := lo.Map(strings.Split(inner, ","), func(item string, _ int) string {
			item = strings.TrimSpace(item)
			if _, err := strconv.ParseFloat(item, 64); err == nil {
				return item
			}
			switch strings.ToLower(item) {
			case "true", "false", "null":
				return strings.ToLower(item)
			}
			return strconv.Quote(item)
		})
		return "[" + strings.Join(items, ", ") + "]"
	})
}

// closeDanglingHints keeps the complete strings of an unterminated hints array and closes it.
// A quoted string followed by a colon is the next key, so the array ends there and the
// remaining fields are kept.
func closeDanglingHints(text string) string {
	loc := hintsOpenRegex.FindStringIndex(text)
	if loc == nil || strings.Contains(text[loc[1]:], "]") {
		return text
	}

	rest := text[loc[1]:]
	var items []string
	for _, m := range quotedStringRegex.FindAllStringIndex(rest, -1) {
		if strings.HasPrefix(strings.TrimSpace(rest[m[1]:]), ":") {
			return text[:loc[1]] + strings.Join(items, ", ") + "], " + rest[m[0]:]
		}
		items = append(items, rest[m[0]:m[1]])
	}
	return text[:loc[1]] + strings.Join(items, ", ") + "]}"
}

func balanceBraces(text string) string {
	text = strings.TrimRight(strings.TrimSpace(text), ",")
	open := strings.Count(text, "{") - strings.Count(text, "}")
	if open > 0 {
		text += strings.Repeat("}", open)
	}
	return text
}

func quoteBareValue(match string) string {
	parts := bareValueRegex.FindStringSubmatch(match)
	value := strings.TrimSpace(parts[2])
	switch strings.ToLower(value) {
	case "true", "false", "null":
		return parts[1] + strings.ToLower(value) + parts[3]
	}
	return parts[1] + strconv.Quote(value) + parts[3]
}

// ParseEvaluation recovers an evaluation from model text. It always returns a usable value.
func ParseEvaluation(raw string) models.Evaluation {
	eval, _ := parseEvaluation(raw)
	return eval
}

func parseEvaluation(raw string) (models.Evaluation, string) {
	if obj, tier, err := extractObject(raw); err == nil {
		return evaluationFromObject(obj), tier
	}
	return extractEvaluationFields(raw), "fields"
}

func evaluationFromObject(obj map[string]any) models.Evaluation {
	eval := models.Evaluation{
		Completion:   defaultCompletion,
		ReadyForNext: false,
		Hints:        append([]string(nil), defaultHints...),
	}

	if v, ok := lookup(obj, "completion"); ok {
		if n, ok := toInt(v); ok {
			eval.Completion = n
		}
	}
	if v, ok := lookup(obj, "readyForNext", "ready_for_next", "readyfornext"); ok {
		if b, ok := toBool(v); ok {
			eval.ReadyForNext = b
		}
	}
	if v, ok := lookup(obj, "hints"); ok {
		if list, ok := v.([]any); ok {
			eval.Hints = lo.FilterMap(list, func(item any, _ int) (string, bool) {
				s, ok := item.(string)
				return strings.TrimSpace(s), ok && strings.TrimSpace(s) != ""
			})
		}
	}

	eval.Completion = lo.Clamp(eval.Completion, 0, 100)
	return eval
}

// extractEvaluationFields is the last tier: each field is pulled out on its own.
func extractEvaluationFields(raw string) models.Evaluation {
	eval := models.Evaluation{
		Completion:   defaultCompletion,
		ReadyForNext: false,
		Hints:        append([]string(nil), defaultHints...),
	}

	if m := completionFieldRegex.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			eval.Completion = n
		}
	}
	if m := readyFieldRegex.FindStringSubmatch(raw); m != nil {
		eval.ReadyForNext = strings.EqualFold(m[1], "true")
	}
	if m := hintsFieldRegex.FindStringSubmatch(raw); m != nil {
		hints := lo.FilterMap(quotedStringRegex.FindAllStringSubmatch(m[1], -1), func(q []string, _ int) (string, bool) {
			s := strings.TrimSpace(q[1])
			return s, s != ""
		})
		if len(hints) > 0 {
			eval.Hints = hints
		}
	}

	eval.Completion = lo.Clamp(eval.Completion, 0, 100)
	return eval
}

// ParseRelevanceVerdict recovers the validator's relevance verdict. It fails only when no verdict can be found.
func ParseRelevanceVerdict(raw string) (models.RelevanceVerdict, error) {
	if obj, _, err := extractObject(raw); err == nil {
		if v, ok := lookup(obj, "isRelevant", "is_relevant", "relevant"); ok {
			if b, ok := toBool(v); ok {
				verdict := models.RelevanceVerdict{IsRelevant: b}
				if reason, ok := lookup(obj, "reason"); ok {
					verdict.Reason, _ = reason.(string)
				}
				if redirect, ok := lookup(obj, "suggestedRedirect", "suggested_redirect"); ok {
					verdict.SuggestedRedirect, _ = redirect.(string)
				}
				return verdict, nil
			}
		}
	}

	m := relevantFieldRegex.FindStringSubmatch(raw)
	if m == nil {
		return models.RelevanceVerdict{}, fmt.Errorf("no relevance verdict in model output")
	}

	verdict := models.RelevanceVerdict{IsRelevant: strings.EqualFold(m[1], "true")}
	if r := redirectFieldRegex.FindStringSubmatch(raw); r != nil {
		verdict.SuggestedRedirect = r[1]
	}
	return verdict, nil
}

// ParseStringArray recovers a JSON array of strings, directly or from a [...] span.
func ParseStringArray(raw string) ([]string, error) {
	candidates := []string{strings.TrimSpace(raw)}
	if span := arraySpanRegex.FindString(raw); span != "" {
		candidates = append(candidates, span)
	}

	for _, candidate := range candidates {
		var items []string
		if err := json.Unmarshal([]byte(candidate), &items); err == nil {
			return lo.Filter(lo.Map(items, func(s string, _ int) string { return strings.TrimSpace(s) }),
				func(s string, _ int) bool { return s != "" }), nil
		}
	}

	return nil, fmt.Errorf("no string array in model output")
}

func lookup(obj map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			return v, true
		}
	}
	for k, v := range obj {
		for _, key := range keys {
			if strings.EqualFold(k, key) {
				return v, true
			}
		}
	}
	return nil, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(lo.Clamp(n, 0, 100)), true
	case string:
		i, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(n), "%"))
		return i, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	return false, false
}
