package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"riskradar/pkg/models"
)

// Base scores before rule weights: unverified contracts start with moderate
// suspicion, verified ones near the floor.
const (
	baseScoreVerified   = 1
	baseScoreUnverified = 3
)

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles        int
	Loaded            int
	SkippedComplex    int
	SkippedDatasource int
	SkippedInvalid    int
}

type compiledSigmaRule struct {
	rule   sigma.Rule
	eval   *sigmaevaluator.RuleEvaluator
	title  string
	weight int
}

// SigmaEvaluator is a local fast-tier risk evaluator driven by Sigma rules
// matched against deployment and enrichment fields. Matched rule severity
// weights are summed onto a base score.
type SigmaEvaluator struct {
	rules []compiledSigmaRule
}

// NewSigmaEvaluator loads Sigma rules from a file or directory and compiles
// evaluators. Unsupported or complex rules are skipped and counted in stats.
func NewSigmaEvaluator(path string) (*SigmaEvaluator, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve rule path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, stats, fmt.Errorf("stat rule path: %w", err)
	}

	files := make([]string, 0, 64)
	if info.IsDir() {
		err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.IsDir() {
				return nil
			}
			if isYAMLFile(filePath) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk rule directory: %w", err)
		}
	} else {
		if !isYAMLFile(resolved) {
			return nil, stats, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		files = append(files, resolved)
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledSigmaRule, 0, len(files))
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}

		if !isDeploymentCompatible(rule) {
			stats.SkippedDatasource++
			continue
		}

		if ok := isSimpleSingleEventRule(rule); !ok {
			stats.SkippedComplex++
			continue
		}

		title := strings.TrimSpace(rule.Title)
		if title == "" {
			title = strings.TrimSpace(rule.ID)
		}
		compiled = append(compiled, compiledSigmaRule{
			rule:   rule,
			eval:   sigmaevaluator.ForRule(rule),
			title:  title,
			weight: severityWeight(rule.Level),
		})
		stats.Loaded++
	}

	return &SigmaEvaluator{rules: compiled}, stats, nil
}

// Evaluate matches all loaded rules against the deployment and sums their
// severity weights onto the base score.
func (e *SigmaEvaluator) Evaluate(ctx context.Context, dep models.Deployment, enr models.Enrichment) (models.RiskAssessment, error) {
	score := baseScoreUnverified
	tags := []string{"unverified"}
	if enr.Verified() {
		score = baseScoreVerified
		tags = []string{"verified"}
	}

	eventMap := deploymentFields(dep, enr)
	headline := "New contract detected (no rule matches)"
	topWeight := 0
	for _, rule := range e.rules {
		res, err := rule.eval.Matches(ctx, eventMap)
		if err != nil {
			continue
		}
		if !res.Match {
			continue
		}
		score += rule.weight
		tags = append(tags, rule.title)
		if rule.weight > topWeight {
			topWeight = rule.weight
			headline = rule.title
		}
	}

	return models.RiskAssessment{
		Score:    models.ClampScore(score),
		Headline: headline,
		Tags:     tags,
		Tier:     models.TierFast,
	}, nil
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

func isDeploymentCompatible(rule sigma.Rule) bool {
	product := strings.ToLower(strings.TrimSpace(rule.Logsource.Product))
	service := strings.ToLower(strings.TrimSpace(rule.Logsource.Service))

	if product != "" && product != "evm" {
		return false
	}
	if service != "" && service != "deployment" {
		return false
	}
	return true
}

func isSimpleSingleEventRule(rule sigma.Rule) bool {
	if rule.Detection.Timeframe > 0 {
		return false
	}

	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return false
		}
		if !isSimpleSearchExpression(cond.Search) {
			return false
		}
	}

	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return false
		}
		if len(search.EventMatchers) == 0 {
			return false
		}
	}

	return true
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

// deploymentFields flattens a deployment and its enrichment into the field
// map Sigma matchers run against.
func deploymentFields(dep models.Deployment, enr models.Enrichment) map[string]interface{} {
	verified := "false"
	if enr.Verified() {
		verified = "true"
	}
	return map[string]interface{}{
		"Address":      dep.ContractAddress,
		"Deployer":     dep.Deployer,
		"BlockHeight":  dep.BlockHeight,
		"Enrichment":   string(enr.Kind),
		"Verified":     verified,
		"ContractName": enr.ContractName,
		"Compiler":     enr.Compiler,
		"Source":       enr.Source,
		"Bytecode":     enr.Bytecode,
	}
}

func severityWeight(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "critical":
		return 7
	case "high":
		return 5
	case "medium":
		return 3
	case "low":
		return 1
	default:
		return 1
	}
}
