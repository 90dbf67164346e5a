package triage

import (
	"context"
	"fmt"

	"riskradar/pkg/models"
)

// FallbackTag marks assessments substituted after an evaluator failure.
const FallbackTag = "evaluation-error"

// Evaluator produces a risk assessment for one deployment. Implementations
// may fail; the pipeline substitutes a neutral fallback so downstream stages
// always receive an assessment.
type Evaluator interface {
	Evaluate(ctx context.Context, dep models.Deployment, enr models.Enrichment) (models.RiskAssessment, error)
}

// Fallback is the neutral assessment used when an evaluator fails.
func Fallback(tier string, cause error) models.RiskAssessment {
	return models.RiskAssessment{
		Score:    5,
		Headline: fmt.Sprintf("risk evaluation failed: %v", cause),
		Tags:     []string{FallbackTag},
		Tier:     tier,
	}
}

// HeuristicEvaluator is the zero-dependency fast tier used when neither a
// model API key nor local rules are configured.
type HeuristicEvaluator struct{}

// Evaluate returns a fixed moderate score so unreviewed contracts surface.
func (HeuristicEvaluator) Evaluate(ctx context.Context, dep models.Deployment, enr models.Enrichment) (models.RiskAssessment, error) {
	tag := "unverified"
	if enr.Verified() {
		tag = "verified"
	}
	return models.RiskAssessment{
		Score:    5,
		Headline: "New contract detected (triage pending)",
		Tags:     []string{tag},
		Tier:     models.TierFast,
	}, nil
}
