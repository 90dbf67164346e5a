package models

import "strings"

// Evaluation tiers.
const (
	TierFast = "fast"
	TierDeep = "deep"
)

// RiskAssessment is the result of one evaluator pass over a deployment.
// Score is the sole control value for alerting and escalation.
type RiskAssessment struct {
	Score    int      `json:"score"`
	Headline string   `json:"headline"`
	Tags     []string `json:"tags,omitempty"`
	Report   string   `json:"report,omitempty"`
	Tier     string   `json:"tier"`
}

// HasTag reports whether the assessment carries the given tag.
func (r RiskAssessment) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ClampScore forces a score into the 0..10 range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
