package heuristics

import (
	"context"
	"strings"
	"testing"

	"autoboard/internal/domain"
)

func TestExtractorBulletLists(t *testing.T) {
	raw := `- users can sign up with an email form
- store profiles in the database schema
1. deploy with a docker pipeline`
	result, err := Extractor{}.Extract(context.Background(), raw, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(result.Features) != 3 {
		t.Fatalf("expected 3 features, got %d", len(result.Features))
	}
	if result.Features[0].Priority != 1 || result.Features[2].Priority != 3 {
		t.Fatalf("priorities should follow list order: %+v", result.Features)
	}
	if result.Features[1].Layer != domain.LayerData {
		t.Fatalf("database wording should map to data, got %q", result.Features[1].Layer)
	}
	if result.Features[2].Layer != domain.LayerDevops {
		t.Fatalf("docker wording should map to devops, got %q", result.Features[2].Layer)
	}
}

func TestExtractorMultiLayerIsFullstack(t *testing.T) {
	result, err := Extractor{}.Extract(context.Background(), "- a signup form page backed by an api endpoint", nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Features[0].Layer != domain.LayerFullstack {
		t.Fatalf("mixed wording should map to fullstack, got %q", result.Features[0].Layer)
	}
}

func TestExtractorProseFallsBackToSentences(t *testing.T) {
	raw := "Users can register. Admins can ban users; moderators can warn them."
	result, err := Extractor{}.Extract(context.Background(), raw, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(result.Features) != 3 {
		t.Fatalf("expected 3 sentence features, got %d: %+v", len(result.Features), result.Features)
	}
}

func TestExtractorRejectsEmptyInput(t *testing.T) {
	if _, err := (Extractor{}).Extract(context.Background(), "   \n  ", nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestGeneratorShape(t *testing.T) {
	result := domain.AnalysisResult{
		Summary: "2 features extracted",
		Features: []domain.ExtractedFeature{
			{Name: "signup", Description: "users sign up", Layer: domain.LayerBackend, Priority: 1},
			{Name: "profile", Description: "users edit profiles", Layer: domain.LayerFrontend, Priority: 2},
		},
	}
	drafts, err := Generator{}.Generate(context.Background(), result)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(drafts) != 4 {
		t.Fatalf("expected architecture + 2 features + integration, got %d", len(drafts))
	}
	if drafts[0].Type != domain.TypeArchitecture {
		t.Fatalf("first draft should be architecture, got %s", drafts[0].Type)
	}
	if drafts[len(drafts)-1].Type != domain.TypeIntegration {
		t.Fatalf("last draft should be integration, got %s", drafts[len(drafts)-1].Type)
	}
	for _, d := range drafts[1:3] {
		if d.Type != domain.TypeImplementation {
			t.Fatalf("feature drafts should be implementation, got %s", d.Type)
		}
		if !strings.HasPrefix(d.TestingCriteria, "verify: ") {
			t.Fatalf("feature drafts should carry testing criteria, got %q", d.TestingCriteria)
		}
		if d.ComplexityScore < 1 || d.ComplexityScore > 10 {
			t.Fatalf("complexity out of range: %d", d.ComplexityScore)
		}
	}
}

func TestGeneratorRejectsEmptyAnalysis(t *testing.T) {
	if _, err := (Generator{}).Generate(context.Background(), domain.AnalysisResult{}); err == nil {
		t.Fatalf("expected error for empty analysis")
	}
}

func TestDeciderPicksFirstCandidate(t *testing.T) {
	id, reasoning, err := Decider{}.Decide(context.Background(), []domain.Task{
		{ID: "t-1", Title: "head"},
		{ID: "t-2", Title: "tail"},
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if id != "t-1" {
		t.Fatalf("expected first candidate, got %q", id)
	}
	if reasoning == "" {
		t.Fatalf("decision should carry reasoning")
	}
}

func TestDeciderDeclinesOnEmptyList(t *testing.T) {
	id, _, err := Decider{}.Decide(context.Background(), nil)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if id != "" {
		t.Fatalf("empty candidate list should decline, got %q", id)
	}
}

func TestSizerProposesSubtasksFromClauses(t *testing.T) {
	task := domain.Task{
		Description: "build the schema and expose the endpoint and render the page",
	}
	score, drafts, err := Sizer{}.Score(context.Background(), task, 4)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score < 1 {
		t.Fatalf("score should be positive, got %d", score)
	}
	if len(drafts) != 3 {
		t.Fatalf("expected one draft per clause, got %d", len(drafts))
	}
}

func TestSizerCapsSubtasks(t *testing.T) {
	task := domain.Task{Description: "a and b and c and d and e and f"}
	_, drafts, err := Sizer{}.Score(context.Background(), task, 4)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(drafts) != 4 {
		t.Fatalf("drafts should be capped at max subtasks, got %d", len(drafts))
	}
}

func TestSizerLeavesSimpleTasksAlone(t *testing.T) {
	_, drafts, err := Sizer{}.Score(context.Background(), domain.Task{Description: "one small thing"}, 4)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if drafts != nil {
		t.Fatalf("simple tasks should not be decomposed, got %+v", drafts)
	}
}
