package pipeline

import (
	"strings"
	"testing"

	"riskradar/pkg/models"
)

func TestFormatFastAlertIncludesExplorerLink(t *testing.T) {
	dep := models.Deployment{BlockHeight: 12, ContractAddress: "0xabc", Deployer: "0xdef"}
	risk := models.RiskAssessment{Score: 8, Headline: "hidden mint", Tags: []string{"mint-risk", "unverified"}}

	text := FormatFastAlert(dep, risk, "https://basescan.org/address/")
	for _, want := range []string{"8/10", "hidden mint", "mint-risk, unverified", "0xabc", "0xdef", "Block: 12", "https://basescan.org/address/0xabc"} {
		if !strings.Contains(text, want) {
			t.Fatalf("fast alert missing %q:\n%s", want, text)
		}
	}
}

func TestFormatDeepAlertCapsReport(t *testing.T) {
	dep := models.Deployment{ContractAddress: "0xabc"}
	risk := models.RiskAssessment{Score: 9, Headline: "bad", Report: strings.Repeat("я", 3000)}

	text := FormatDeepAlert(dep, risk, "https://basescan.org/address/", 2000)
	if got := strings.Count(text, "я"); got != 2000 {
		t.Fatalf("expected report capped at 2000 characters, got %d", got)
	}
	if !strings.Contains(text, "--- Report ---") {
		t.Fatalf("deep alert missing report section:\n%s", text)
	}
}

func TestFormatDeepAlertOmitsEmptyReport(t *testing.T) {
	text := FormatDeepAlert(models.Deployment{}, models.RiskAssessment{Score: 7}, "https://basescan.org/address/", 2000)
	if strings.Contains(text, "--- Report ---") {
		t.Fatalf("report section rendered for empty report:\n%s", text)
	}
}

func TestSeverityGlyphBands(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{0, "🟢"},
		{3, "🟢"},
		{4, "🟡"},
		{6, "🟡"},
		{7, "🔴"},
		{10, "🔴"},
	}
	for _, c := range cases {
		if got := severityGlyph(c.score); got != c.want {
			t.Fatalf("severityGlyph(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}
