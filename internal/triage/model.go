package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"riskradar/pkg/models"
)

// Prompt-side cap on raw bytecode; full bytecode adds noise past this point.
const maxBytecodePromptChars = 8_000

const fastSystemPrompt = `You are a smart contract security scanner. You receive information about a newly deployed contract on an EVM chain. Produce a quick risk triage.

Reply ONLY with valid JSON (no markdown fences):
{
  "score": <0-10 integer>,
  "headline": "<one-line risk summary>",
  "tags": ["<tag1>", "<tag2>", ...]
}

Tags to consider: honeypot, mint-risk, proxy-upgradeable, ownership-not-renounced, fee-manipulation, hidden-mint, reentrancy, flash-loan-risk, fake-liquidity, self-destruct, blacklist-function, pause-function, unverified, safe

Score guide:
- 0-2: appears safe / standard patterns
- 3-5: moderate concerns or unverified
- 6-7: notable risks found
- 8-10: high risk / likely malicious`

const deepSystemPrompt = `You are an expert smart contract auditor. Perform a thorough security analysis of this contract.

Structure your response as valid JSON (no markdown fences):
{
  "score": <0-10 integer>,
  "headline": "<one-line summary>",
  "tags": ["<tag1>", ...],
  "findings": [
    {
      "severity": "critical|high|medium|low|info",
      "title": "<finding title>",
      "description": "<what the risk is>",
      "evidence": "<function name, line, or pattern>",
      "confidence": "high|medium|low"
    }
  ],
  "summary": "<2-3 paragraph detailed analysis>"
}

Check for: ownership/admin risks, minting capabilities, proxy upgradeability, honeypot patterns (transfer restrictions, hidden fees), reentrancy, flash loan vectors, self-destruct, blacklist/pause functions, fake liquidity locks, and any unusual or obfuscated logic.`

// ModelConfig configures one tier of the remote model evaluator.
type ModelConfig struct {
	APIURL    string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Tier      string // models.TierFast or models.TierDeep
}

// ModelEvaluator calls a hosted language-model messages API and parses its
// JSON verdict into a RiskAssessment.
type ModelEvaluator struct {
	cfg    ModelConfig
	system string
	client *http.Client
}

// NewModelEvaluator creates an evaluator for the given tier.
func NewModelEvaluator(cfg ModelConfig) (*ModelEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model api key is empty")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is empty")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.anthropic.com/v1/messages"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	system := fastSystemPrompt
	maxTokens := 256
	if cfg.Tier == models.TierDeep {
		system = deepSystemPrompt
		maxTokens = 2048
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = maxTokens
	}

	return &ModelEvaluator{
		cfg:    cfg,
		system: system,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type messagesRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system"`
	Messages  []messagePayload `json:"messages"`
}

type messagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type fastVerdict struct {
	Score    int      `json:"score"`
	Headline string   `json:"headline"`
	Tags     []string `json:"tags"`
}

type deepVerdict struct {
	Score    int      `json:"score"`
	Headline string   `json:"headline"`
	Tags     []string `json:"tags"`
	Findings []struct {
		Severity    string `json:"severity"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Evidence    string `json:"evidence"`
		Confidence  string `json:"confidence"`
	} `json:"findings"`
	Summary string `json:"summary"`
}

// Evaluate sends the deployment context to the model. Transport errors and
// malformed replies are returned to the caller, which owns the fallback.
func (e *ModelEvaluator) Evaluate(ctx context.Context, dep models.Deployment, enr models.Enrichment) (models.RiskAssessment, error) {
	text, err := e.complete(ctx, buildContext(dep, enr))
	if err != nil {
		return models.RiskAssessment{}, err
	}

	if e.cfg.Tier == models.TierDeep {
		var v deepVerdict
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return models.RiskAssessment{}, fmt.Errorf("parse deep verdict: %w", err)
		}
		return models.RiskAssessment{
			Score:    models.ClampScore(v.Score),
			Headline: v.Headline,
			Tags:     v.Tags,
			Report:   buildReport(v),
			Tier:     models.TierDeep,
		}, nil
	}

	var v fastVerdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return models.RiskAssessment{}, fmt.Errorf("parse fast verdict: %w", err)
	}
	return models.RiskAssessment{
		Score:    models.ClampScore(v.Score),
		Headline: v.Headline,
		Tags:     v.Tags,
		Tier:     models.TierFast,
	}, nil
}

func (e *ModelEvaluator) complete(ctx context.Context, userMsg string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		System:    e.system,
		Messages:  []messagePayload{{Role: "user", Content: userMsg}},
	})
	if err != nil {
		return "", fmt.Errorf("encode model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("model request failed with status %s", resp.Status)
	}

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if len(mr.Content) == 0 {
		return "", fmt.Errorf("model response has no content")
	}
	return stripFences(mr.Content[0].Text), nil
}

// buildContext assembles the user message from whichever enrichment variant
// is available.
func buildContext(dep models.Deployment, enr models.Enrichment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contract address: %s\n", dep.ContractAddress)
	fmt.Fprintf(&b, "Deployer: %s\n", dep.Deployer)
	fmt.Fprintf(&b, "Block: %d\n", dep.BlockHeight)

	switch enr.Kind {
	case models.EnrichmentVerified:
		fmt.Fprintf(&b, "Contract name: %s\n", enr.ContractName)
		fmt.Fprintf(&b, "Compiler: %s\n", enr.Compiler)
		fmt.Fprintf(&b, "\n--- Verified Source Code ---\n%s", enr.Source)
	case models.EnrichmentBytecode:
		code := enr.Bytecode
		if len(code) > maxBytecodePromptChars {
			code = code[:maxBytecodePromptChars]
		}
		fmt.Fprintf(&b, "\n--- Bytecode (no verified source) ---\n%s", code)
	default:
		b.WriteString("\nNo verified source code or bytecode available. Score based on metadata only.")
	}
	return b.String()
}

func buildReport(v deepVerdict) string {
	var b strings.Builder
	b.WriteString(v.Summary)
	b.WriteString("\n\n--- Findings ---")
	for _, f := range v.Findings {
		fmt.Fprintf(&b, "\n[%s] %s\n", strings.ToUpper(f.Severity), f.Title)
		fmt.Fprintf(&b, "  %s\n", f.Description)
		fmt.Fprintf(&b, "  Evidence: %s\n", orNA(f.Evidence))
		fmt.Fprintf(&b, "  Confidence: %s\n", orNA(f.Confidence))
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// stripFences removes markdown code fences the model sometimes adds despite
// instructions.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = text[3:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
