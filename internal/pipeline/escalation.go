package pipeline

import (
	"context"

	"riskradar/internal/logger"
	"riskradar/internal/triage"
	"riskradar/pkg/metrics"
	"riskradar/pkg/models"
)

// Enricher looks up contract metadata. Failures degrade evaluation quality
// rather than blocking it.
type Enricher interface {
	Lookup(ctx context.Context, address string) (models.Enrichment, error)
}

// Dispatcher fans one alert message out to all configured channels and
// returns the number of channels that failed. It never returns an error:
// per-channel failure is isolated inside the dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) int
}

// Config controls thresholds and alert formatting.
type Config struct {
	// AlertMinScore is the minimum fast-tier score that emits an alert.
	AlertMinScore int
	// DeepThreshold is the minimum fast-tier score that escalates to the
	// deep evaluator. Deep escalation checks only this threshold, so an
	// inverted configuration (DeepThreshold < AlertMinScore) is honored
	// as-is.
	DeepThreshold int
	// MaxReportChars caps the deep report body embedded in the alert text.
	MaxReportChars int
	// ExplorerURL prefixes the contract address in alert text.
	ExplorerURL string
}

// Escalation drives one deployment through enrichment, fast evaluation,
// conditional deep evaluation, and alert dispatch. Every stage has a
// fallback, so an event always reaches Done.
type Escalation struct {
	cfg      Config
	enricher Enricher
	fast     triage.Evaluator
	deep     triage.Evaluator // nil when deep analysis is not configured
	disp     Dispatcher
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewEscalation creates the pipeline. deep may be nil.
func NewEscalation(cfg Config, enricher Enricher, fast, deep triage.Evaluator, disp Dispatcher, log *logger.Logger, m *metrics.Metrics) *Escalation {
	if cfg.AlertMinScore <= 0 {
		cfg.AlertMinScore = 6
	}
	if cfg.DeepThreshold <= 0 {
		cfg.DeepThreshold = 7
	}
	if cfg.MaxReportChars <= 0 {
		cfg.MaxReportChars = 2000
	}
	if cfg.ExplorerURL == "" {
		cfg.ExplorerURL = "https://basescan.org/address/"
	}
	return &Escalation{
		cfg:      cfg,
		enricher: enricher,
		fast:     fast,
		deep:     deep,
		disp:     disp,
		log:      log,
		metrics:  m,
	}
}

// Process converts one deployment into zero or more alerts. It returns an
// error only for fatal outcomes; degraded stages are logged and absorbed.
func (p *Escalation) Process(ctx context.Context, dep models.Deployment) error {
	enr := p.enrichStage(ctx, dep)
	if enr.Status == StatusDegraded {
		p.log.Warnf("Enrichment failed for %s, continuing unenriched: %v", dep.ContractAddress, enr.Cause)
	}

	fast := p.evaluateStage(ctx, dep, enr.Value, p.fast, models.TierFast)
	p.log.Infof("FAST %d/10 — %s [%s]", fast.Value.Score, fast.Value.Headline, dep.ContractAddress)

	if fast.Value.Score >= p.cfg.AlertMinScore {
		p.dispatchStage(ctx, FormatFastAlert(dep, fast.Value, p.cfg.ExplorerURL), models.TierFast)
	}

	if p.deep != nil && fast.Value.Score >= p.cfg.DeepThreshold {
		deep := p.evaluateStage(ctx, dep, enr.Value, p.deep, models.TierDeep)
		p.log.Infof("DEEP %d/10 — %s [%s]", deep.Value.Score, deep.Value.Headline, dep.ContractAddress)
		p.dispatchStage(ctx, FormatDeepAlert(dep, deep.Value, p.cfg.ExplorerURL, p.cfg.MaxReportChars), models.TierDeep)
	}

	return nil
}

func (p *Escalation) enrichStage(ctx context.Context, dep models.Deployment) Result[models.Enrichment] {
	if p.enricher == nil {
		return ok(models.Unavailable())
	}
	enr, err := p.enricher.Lookup(ctx, dep.ContractAddress)
	if err != nil {
		return degraded(models.Unavailable(), err)
	}
	return ok(enr)
}

func (p *Escalation) evaluateStage(ctx context.Context, dep models.Deployment, enr models.Enrichment, eval triage.Evaluator, tier string) Result[models.RiskAssessment] {
	p.metrics.Evaluation(tier)

	risk, err := eval.Evaluate(ctx, dep, enr)
	if err != nil {
		p.metrics.EvaluationDegraded(tier)
		p.log.Warnf("%s evaluation failed for %s, using fallback: %v", tier, dep.ContractAddress, err)
		return degraded(triage.Fallback(tier, err), err)
	}
	risk.Score = models.ClampScore(risk.Score)
	risk.Tier = tier
	return ok(risk)
}

func (p *Escalation) dispatchStage(ctx context.Context, text, tier string) {
	p.metrics.AlertDispatched(tier)
	if failed := p.disp.Dispatch(ctx, text); failed > 0 {
		p.log.Warnf("Alert delivery degraded: %d channel(s) failed (tier=%s)", failed, tier)
	}
}
