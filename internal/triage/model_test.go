package triage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"riskradar/pkg/models"
)

func modelServer(t *testing.T, reply string, check func(r *http.Request, body []byte)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		if check != nil {
			check(r, body)
		}
		resp := map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": reply}},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func TestModelEvaluatorFastVerdict(t *testing.T) {
	var gotKey string
	srv := modelServer(t, `{"score": 8, "headline": "honeypot pattern", "tags": ["honeypot", "unverified"]}`,
		func(r *http.Request, body []byte) {
			gotKey = r.Header.Get("x-api-key")
			if !strings.Contains(string(body), "0xcontract") {
				t.Errorf("request missing contract address: %s", body)
			}
		})
	defer srv.Close()

	eval, err := NewModelEvaluator(ModelConfig{APIURL: srv.URL, APIKey: "test-key", Model: "fast-model", Tier: models.TierFast})
	if err != nil {
		t.Fatalf("NewModelEvaluator: %v", err)
	}

	dep := models.Deployment{BlockHeight: 1, EventID: "0x1", ContractAddress: "0xcontract", Deployer: "0xdeployer"}
	risk, err := eval.Evaluate(context.Background(), dep, models.Unavailable())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if gotKey != "test-key" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if risk.Score != 8 || risk.Headline != "honeypot pattern" {
		t.Fatalf("unexpected assessment: %+v", risk)
	}
	if risk.Tier != models.TierFast {
		t.Fatalf("expected fast tier, got %q", risk.Tier)
	}
	if !risk.HasTag("honeypot") {
		t.Fatalf("missing tag: %v", risk.Tags)
	}
}

func TestModelEvaluatorDeepVerdictBuildsReport(t *testing.T) {
	reply := `{
		"score": 9,
		"headline": "confirmed rug",
		"tags": ["hidden-mint"],
		"findings": [
			{"severity": "critical", "title": "Hidden mint", "description": "owner can mint", "evidence": "mint()", "confidence": "high"}
		],
		"summary": "The contract allows unrestricted minting."
	}`
	srv := modelServer(t, reply, nil)
	defer srv.Close()

	eval, err := NewModelEvaluator(ModelConfig{APIURL: srv.URL, APIKey: "test-key", Model: "deep-model", Tier: models.TierDeep})
	if err != nil {
		t.Fatalf("NewModelEvaluator: %v", err)
	}

	risk, err := eval.Evaluate(context.Background(), models.Deployment{ContractAddress: "0xc"}, models.Unavailable())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if risk.Tier != models.TierDeep {
		t.Fatalf("expected deep tier, got %q", risk.Tier)
	}
	for _, want := range []string{"unrestricted minting", "[CRITICAL] Hidden mint", "Evidence: mint()", "Confidence: high"} {
		if !strings.Contains(risk.Report, want) {
			t.Fatalf("report missing %q:\n%s", want, risk.Report)
		}
	}
}

func TestModelEvaluatorStripsMarkdownFences(t *testing.T) {
	srv := modelServer(t, "```json\n{\"score\": 3, \"headline\": \"ok\", \"tags\": []}\n```", nil)
	defer srv.Close()

	eval, err := NewModelEvaluator(ModelConfig{APIURL: srv.URL, APIKey: "test-key", Model: "m", Tier: models.TierFast})
	if err != nil {
		t.Fatalf("NewModelEvaluator: %v", err)
	}
	risk, err := eval.Evaluate(context.Background(), models.Deployment{}, models.Unavailable())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if risk.Score != 3 {
		t.Fatalf("expected score 3, got %d", risk.Score)
	}
}

func TestModelEvaluatorMalformedVerdict(t *testing.T) {
	srv := modelServer(t, "I cannot analyze this contract.", nil)
	defer srv.Close()

	eval, err := NewModelEvaluator(ModelConfig{APIURL: srv.URL, APIKey: "test-key", Model: "m", Tier: models.TierFast})
	if err != nil {
		t.Fatalf("NewModelEvaluator: %v", err)
	}
	if _, err := eval.Evaluate(context.Background(), models.Deployment{}, models.Unavailable()); err == nil {
		t.Fatalf("expected error for non-JSON verdict")
	}
}

func TestModelEvaluatorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	eval, err := NewModelEvaluator(ModelConfig{APIURL: srv.URL, APIKey: "test-key", Model: "m", Tier: models.TierFast})
	if err != nil {
		t.Fatalf("NewModelEvaluator: %v", err)
	}
	if _, err := eval.Evaluate(context.Background(), models.Deployment{}, models.Unavailable()); err == nil {
		t.Fatalf("expected error for 5xx response")
	}
}

func TestModelEvaluatorRequiresKeyAndModel(t *testing.T) {
	if _, err := NewModelEvaluator(ModelConfig{Model: "m"}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewModelEvaluator(ModelConfig{APIKey: "k"}); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestFallbackIsNeutral(t *testing.T) {
	risk := Fallback(models.TierFast, context.DeadlineExceeded)
	if risk.Score != 5 {
		t.Fatalf("expected neutral score 5, got %d", risk.Score)
	}
	if !risk.HasTag(FallbackTag) {
		t.Fatalf("missing fallback tag: %v", risk.Tags)
	}
	if !strings.Contains(risk.Headline, "deadline exceeded") {
		t.Fatalf("headline should carry the cause: %q", risk.Headline)
	}
}

func TestBuildContextVariants(t *testing.T) {
	dep := models.Deployment{BlockHeight: 9, ContractAddress: "0xc", Deployer: "0xd"}

	verified := buildContext(dep, models.Enrichment{Kind: models.EnrichmentVerified, ContractName: "Token", Compiler: "v0.8.24", Source: "contract Token {}"})
	if !strings.Contains(verified, "Verified Source Code") || !strings.Contains(verified, "contract Token {}") {
		t.Fatalf("verified context missing source:\n%s", verified)
	}

	long := strings.Repeat("6080", 3000)
	bytecode := buildContext(dep, models.Enrichment{Kind: models.EnrichmentBytecode, Bytecode: long})
	if strings.Contains(bytecode, long) {
		t.Fatalf("bytecode context not capped")
	}
	if !strings.Contains(bytecode, "Bytecode (no verified source)") {
		t.Fatalf("bytecode context missing section:\n%s", bytecode)
	}

	none := buildContext(dep, models.Unavailable())
	if !strings.Contains(none, "metadata only") {
		t.Fatalf("unavailable context missing notice:\n%s", none)
	}
}
