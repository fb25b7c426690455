// Package heuristics provides rule-based default collaborators for the
// engine: feature extraction, task generation, next-task decisions and
// complexity sizing. They stand in where no external agent backend is
// wired up and keep the orchestration loops fully operational offline.
package heuristics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autoboard/internal/domain"
)

var layerKeywords = map[string][]string{
	domain.LayerData:     {"database", "schema", "migration", "model", "storage", "sql"},
	domain.LayerBackend:  {"api", "endpoint", "server", "service", "auth", "backend"},
	domain.LayerFrontend: {"page", "ui", "screen", "form", "button", "display", "frontend", "view"},
	domain.LayerDevops:   {"deploy", "pipeline", "docker", "ci", "infrastructure"},
	domain.LayerTesting:  {"test", "coverage", "qa"},
}

// Extractor derives a feature list from raw requirements text. Bullet and
// numbered lines become one feature each; free prose is split on sentences.
type Extractor struct{}

func (Extractor) Extract(_ context.Context, raw string, prd *string) (domain.AnalysisResult, error) {
	items := splitItems(raw)
	if len(items) == 0 {
		return domain.AnalysisResult{}, errors.New("no features found in requirements text")
	}
	result := domain.AnalysisResult{
		Summary: fmt.Sprintf("%d features extracted", len(items)),
	}
	for i, item := range items {
		result.Features = append(result.Features, domain.ExtractedFeature{
			Name:        featureName(item),
			Description: item,
			Layer:       guessLayer(item),
			Priority:    i + 1,
		})
	}
	if prd != nil && strings.TrimSpace(*prd) != "" {
		result.Summary += " (PRD attached)"
	}
	return result, nil
}

func splitItems(raw string) []string {
	var items []string
	lines := strings.Split(raw, "\n")
	bullets := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if cut, ok := stripBullet(trimmed); ok {
			items = append(items, cut)
			bullets++
		}
	}
	if bullets > 0 {
		return items
	}
	// No list structure; fall back to sentence granularity.
	items = items[:0]
	for _, s := range strings.FieldsFunc(raw, func(r rune) bool { return r == '.' || r == ';' || r == '\n' }) {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func stripBullet(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}
	for i, r := range line {
		if r >= '0' && r <= '9' {
			continue
		}
		if i > 0 && (r == '.' || r == ')') {
			return strings.TrimSpace(line[i+1:]), true
		}
		break
	}
	return "", false
}

func featureName(item string) string {
	words := strings.Fields(item)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

func guessLayer(item string) string {
	lowered := strings.ToLower(item)
	var matched []string
	for layer, keywords := range layerKeywords {
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				matched = append(matched, layer)
				break
			}
		}
	}
	switch len(matched) {
	case 0:
		return ""
	case 1:
		return matched[0]
	default:
		return domain.LayerFullstack
	}
}

// Generator turns extracted features into an ordered task draft list: one
// architecture task up front, one implementation task per feature, one
// integration task at the end. Emission order matches designed dependency
// order so assigned sequences line up.
type Generator struct{}

func (Generator) Generate(_ context.Context, result domain.AnalysisResult) ([]domain.TaskDraft, error) {
	if len(result.Features) == 0 {
		return nil, errors.New("analysis result has no features")
	}
	drafts := []domain.TaskDraft{{
		Title:       "Define architecture and module boundaries",
		Description: result.Summary,
		Type:        domain.TypeArchitecture,
	}}
	for _, f := range result.Features {
		drafts = append(drafts, domain.TaskDraft{
			Title:           f.Name,
			Description:     f.Description,
			Type:            domain.TypeImplementation,
			Layer:           f.Layer,
			ComplexityScore: complexityOf(f.Description),
			TestingCriteria: "verify: " + f.Description,
		})
	}
	drafts = append(drafts, domain.TaskDraft{
		Title:       "Integrate and verify all features end to end",
		Type:        domain.TypeIntegration,
		Layer:       domain.LayerTesting,
	})
	return drafts, nil
}

func complexityOf(description string) int {
	score := 1 + len(strings.Fields(description))/8
	score += strings.Count(strings.ToLower(description), " and ")
	score += strings.Count(description, ",")
	if score > 10 {
		score = 10
	}
	return score
}

// Decider picks the first candidate, which the engine hands over already
// sorted into execution order.
type Decider struct{}

func (Decider) Decide(_ context.Context, candidates []domain.Task) (string, string, error) {
	if len(candidates) == 0 {
		return "", "no candidates offered", nil
	}
	t := candidates[0]
	return t.ID, fmt.Sprintf("first ready task in execution order: %q", t.Title), nil
}

// Sizer scores a task by clause count and proposes one subtask per clause
// when the description reads as several pieces of work.
type Sizer struct{}

func (Sizer) Score(_ context.Context, t domain.Task, maxSubtasks int) (int, []domain.TaskDraft, error) {
	if t.Description == "" {
		return 1, nil, nil
	}
	clauses := splitClauses(t.Description)
	score := complexityOf(t.Description)
	if len(clauses) < 2 {
		return score, nil, nil
	}
	if maxSubtasks > 0 && len(clauses) > maxSubtasks {
		clauses = clauses[:maxSubtasks]
	}
	layer := ""
	if t.Layer != nil {
		layer = *t.Layer
	}
	var drafts []domain.TaskDraft
	for _, clause := range clauses {
		drafts = append(drafts, domain.TaskDraft{
			Title:       featureName(clause),
			Description: clause,
			Type:        t.Type,
			Layer:       layer,
		})
	}
	return score, drafts, nil
}

func splitClauses(description string) []string {
	replaced := strings.ReplaceAll(description, " and ", "\x00")
	replaced = strings.ReplaceAll(replaced, ", ", "\x00")
	replaced = strings.ReplaceAll(replaced, "; ", "\x00")
	var clauses []string
	for _, c := range strings.Split(replaced, "\x00") {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			clauses = append(clauses, trimmed)
		}
	}
	return clauses
}
