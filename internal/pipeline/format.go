package pipeline

import (
	"fmt"
	"strings"

	"riskradar/pkg/models"
)

func severityGlyph(score int) string {
	switch {
	case score >= 7:
		return "🔴"
	case score >= 4:
		return "🟡"
	default:
		return "🟢"
	}
}

// FormatFastAlert renders the short message for fast-tier results.
func FormatFastAlert(dep models.Deployment, risk models.RiskAssessment, explorerURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s New contract deployed\n", severityGlyph(risk.Score))
	fmt.Fprintf(&b, "Risk: %d/10 — %s\n", risk.Score, risk.Headline)
	fmt.Fprintf(&b, "Tags: %s\n\n", strings.Join(risk.Tags, ", "))
	fmt.Fprintf(&b, "Address: %s\n", dep.ContractAddress)
	fmt.Fprintf(&b, "Deployer: %s\n", dep.Deployer)
	fmt.Fprintf(&b, "Block: %d\n", dep.BlockHeight)
	fmt.Fprintf(&b, "Explorer: %s%s\n", explorerURL, dep.ContractAddress)
	return b.String()
}

// FormatDeepAlert renders the rich message for deep-tier results. The report
// body is capped at maxReportChars before per-sink truncation applies.
func FormatDeepAlert(dep models.Deployment, risk models.RiskAssessment, explorerURL string, maxReportChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s DEEP ANALYSIS — Risk %d/10\n", severityGlyph(risk.Score), risk.Score)
	fmt.Fprintf(&b, "%s\n", risk.Headline)
	fmt.Fprintf(&b, "Tags: %s\n\n", strings.Join(risk.Tags, ", "))
	fmt.Fprintf(&b, "Contract: %s\n", dep.ContractAddress)
	fmt.Fprintf(&b, "Deployer: %s\n", dep.Deployer)
	fmt.Fprintf(&b, "Explorer: %s%s\n", explorerURL, dep.ContractAddress)

	if risk.Report != "" {
		report := risk.Report
		if runes := []rune(report); maxReportChars > 0 && len(runes) > maxReportChars {
			report = string(runes[:maxReportChars])
		}
		fmt.Fprintf(&b, "\n--- Report ---\n%s\n", report)
	}
	return b.String()
}
