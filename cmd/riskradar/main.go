package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"riskradar/config"
	"riskradar/internal/chain"
	"riskradar/internal/checkpoint"
	"riskradar/internal/dispatch"
	"riskradar/internal/enrich"
	"riskradar/internal/logger"
	"riskradar/internal/output/alertjson"
	"riskradar/internal/output/command"
	"riskradar/internal/output/kafka"
	"riskradar/internal/output/telegram"
	"riskradar/internal/output/webhook"
	"riskradar/internal/pipeline"
	"riskradar/internal/rules"
	"riskradar/internal/scan"
	"riskradar/internal/triage"
	"riskradar/pkg/metrics"
	"riskradar/pkg/models"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("riskradar.yml"); err == nil {
		return "riskradar.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "riskradar.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "riskradar.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.Radar.Chain.RPCURL == "" {
		cfg.Radar.Chain.RPCURL = "https://mainnet.base.org"
	}
	if cfg.Radar.Chain.PollInterval <= 0 {
		cfg.Radar.Chain.PollInterval = 30 * time.Second
	}
	if cfg.Radar.Chain.StartBlock == "" {
		cfg.Radar.Chain.StartBlock = "latest"
	}
	if cfg.Radar.Chain.BatchCap <= 0 {
		cfg.Radar.Chain.BatchCap = 10
	}
	if cfg.Radar.Chain.RequestTimeout <= 0 {
		cfg.Radar.Chain.RequestTimeout = 15 * time.Second
	}

	if cfg.Radar.Checkpoint.Mode == "" {
		cfg.Radar.Checkpoint.Mode = "file"
	}
	if cfg.Radar.Checkpoint.File.Path == "" {
		cfg.Radar.Checkpoint.File.Path = "data/radar.ckpt"
	}

	if cfg.Radar.Enrichment.APIURL == "" {
		cfg.Radar.Enrichment.APIURL = "https://api.basescan.org/api"
	}
	if cfg.Radar.Enrichment.Timeout <= 0 {
		cfg.Radar.Enrichment.Timeout = 15 * time.Second
	}

	if cfg.Radar.Triage.AlertMinScore <= 0 {
		cfg.Radar.Triage.AlertMinScore = 6
	}
	if cfg.Radar.Triage.DeepThreshold <= 0 {
		cfg.Radar.Triage.DeepThreshold = 7
	}
	if cfg.Radar.Triage.FastModel == "" {
		cfg.Radar.Triage.FastModel = "claude-sonnet-4-20250514"
	}
	if cfg.Radar.Triage.DeepModel == "" {
		cfg.Radar.Triage.DeepModel = "claude-opus-4-20250514"
	}
	if cfg.Radar.Triage.Timeout <= 0 {
		cfg.Radar.Triage.Timeout = 60 * time.Second
	}

	if cfg.Radar.Alerts.SendTimeout <= 0 {
		cfg.Radar.Alerts.SendTimeout = 20 * time.Second
	}
	if cfg.Radar.Alerts.File.Path == "" {
		cfg.Radar.Alerts.File.Path = "output/alerts.jsonl"
	}

	if cfg.Radar.Metrics.Addr == "" {
		cfg.Radar.Metrics.Addr = ":9311"
	}

	if cfg.Radar.Logging.Level == "" {
		cfg.Radar.Logging.Level = "info"
	}
}

func buildStore(cfg *config.Config, lg *logger.Logger) checkpoint.Store {
	switch cfg.Radar.Checkpoint.Mode {
	case "file":
		s, err := checkpoint.NewFileStore(cfg.Radar.Checkpoint.File.Path)
		if err != nil {
			lg.Errorf("Failed to open file checkpoint store: %v", err)
			log.Fatalf("Failed to open file checkpoint store: %v", err)
		}
		lg.Infof("Checkpoint mode: file (%s)", cfg.Radar.Checkpoint.File.Path)
		return s
	case "redis":
		s, err := checkpoint.NewRedisStore(checkpoint.RedisConfig{
			Addr:         cfg.Radar.Checkpoint.Redis.Addr,
			Password:     cfg.Radar.Checkpoint.Redis.Password,
			DB:           cfg.Radar.Checkpoint.Redis.DB,
			KeyPrefix:    cfg.Radar.Checkpoint.Redis.KeyPrefix,
			ProcessedTTL: cfg.Radar.Checkpoint.Redis.ProcessedTTL,
		})
		if err != nil {
			lg.Errorf("Failed to open redis checkpoint store: %v", err)
			log.Fatalf("Failed to open redis checkpoint store: %v", err)
		}
		lg.Infof("Checkpoint mode: redis (%s)", cfg.Radar.Checkpoint.Redis.Addr)
		return s
	default:
		log.Fatalf("Unknown checkpoint mode: %s", cfg.Radar.Checkpoint.Mode)
		return nil
	}
}

func buildEvaluators(cfg *config.Config, lg *logger.Logger) (fast, deep triage.Evaluator) {
	tri := cfg.Radar.Triage

	if tri.APIKey != "" {
		fastEval, err := triage.NewModelEvaluator(triage.ModelConfig{
			APIURL:    tri.APIURL,
			APIKey:    tri.APIKey,
			Model:     tri.FastModel,
			MaxTokens: tri.FastMaxTokens,
			Timeout:   tri.Timeout,
			Tier:      models.TierFast,
		})
		if err != nil {
			lg.Errorf("Failed to create fast evaluator: %v", err)
			log.Fatalf("Failed to create fast evaluator: %v", err)
		}
		deepEval, err := triage.NewModelEvaluator(triage.ModelConfig{
			APIURL:    tri.APIURL,
			APIKey:    tri.APIKey,
			Model:     tri.DeepModel,
			MaxTokens: tri.DeepMaxTokens,
			Timeout:   tri.Timeout,
			Tier:      models.TierDeep,
		})
		if err != nil {
			lg.Errorf("Failed to create deep evaluator: %v", err)
			log.Fatalf("Failed to create deep evaluator: %v", err)
		}
		lg.Infof("Triage: model evaluators (fast=%s deep=%s)", tri.FastModel, tri.DeepModel)
		return fastEval, deepEval
	}

	if cfg.Radar.Rules.Enabled {
		if strings.TrimSpace(cfg.Radar.Rules.Path) == "" {
			lg.Warnf("Rules enabled but rules.path is empty; falling back to heuristic triage")
		} else {
			eval, stats, err := rules.NewSigmaEvaluator(cfg.Radar.Rules.Path)
			if err != nil {
				lg.Errorf("Failed to load Sigma rules from %s: %v", cfg.Radar.Rules.Path, err)
				log.Fatalf("Failed to load Sigma rules: %v", err)
			}
			lg.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
				stats.Loaded,
				stats.SkippedComplex,
				stats.SkippedDatasource,
				stats.SkippedInvalid,
				stats.TotalFiles,
			)
			if stats.Loaded == 0 {
				lg.Warnf("No compatible Sigma rules loaded; triage is effectively score-by-verification only")
			}
			lg.Infof("Triage: sigma rules (no deep tier)")
			return eval, nil
		}
	}

	lg.Infof("Triage: heuristic placeholder (no model key, no rules)")
	return triage.HeuristicEvaluator{}, nil
}

func buildSinks(cfg *config.Config, lg *logger.Logger) []dispatch.Sink {
	var sinks []dispatch.Sink
	al := cfg.Radar.Alerts

	if al.Telegram.Enabled {
		s, err := telegram.NewSink(telegram.Config{
			BotToken: al.Telegram.BotToken,
			ChatID:   al.Telegram.ChatID,
			Limit:    al.Telegram.Limit,
			Timeout:  al.Telegram.Timeout,
		})
		if err != nil {
			lg.Errorf("Failed to create telegram sink: %v", err)
			log.Fatalf("Failed to create telegram sink: %v", err)
		}
		sinks = append(sinks, s)
		lg.Infof("Alert channel: telegram (chat %s)", al.Telegram.ChatID)
	}

	if al.Webhook.Enabled {
		s, err := webhook.NewSink(webhook.Config{
			URL:     al.Webhook.URL,
			Headers: al.Webhook.Headers,
			Limit:   al.Webhook.Limit,
			Timeout: al.Webhook.Timeout,
		})
		if err != nil {
			lg.Errorf("Failed to create webhook sink: %v", err)
			log.Fatalf("Failed to create webhook sink: %v", err)
		}
		sinks = append(sinks, s)
		lg.Infof("Alert channel: webhook (%s)", al.Webhook.URL)
	}

	if al.Kafka.Enabled {
		s, err := kafka.NewSink(kafka.Config{
			Brokers: al.Kafka.Brokers,
			Topic:   al.Kafka.Topic,
			Limit:   al.Kafka.Limit,
		})
		if err != nil {
			lg.Errorf("Failed to create kafka sink: %v", err)
			log.Fatalf("Failed to create kafka sink: %v", err)
		}
		sinks = append(sinks, s)
		lg.Infof("Alert channel: kafka (%s topic %s)", al.Kafka.Brokers, al.Kafka.Topic)
	}

	if al.Command.Enabled {
		s, err := command.NewSink(command.Config{
			Command: al.Command.Command,
			Args:    al.Command.Args,
			Limit:   al.Command.Limit,
		})
		if err != nil {
			lg.Errorf("Failed to create command sink: %v", err)
			log.Fatalf("Failed to create command sink: %v", err)
		}
		sinks = append(sinks, s)
		lg.Infof("Alert channel: command (%s)", al.Command.Command)
	}

	if al.File.Enabled {
		s, err := alertjson.NewSink(al.File.Path)
		if err != nil {
			lg.Errorf("Failed to create alert file sink: %v", err)
			log.Fatalf("Failed to create alert file sink: %v", err)
		}
		sinks = append(sinks, s)
		lg.Infof("Alert channel: file (%s)", al.File.Path)
	}

	if len(sinks) == 0 {
		lg.Warnf("No alert channels configured; alerts will only be logged")
	}
	return sinks
}

func main() {
	configArg := ""
	if len(os.Args) > 1 {
		configArg = os.Args[1]
	}
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	lg, err := logger.New(cfg.Radar.Logging.Enabled, cfg.Radar.Logging.Level, cfg.Radar.Logging.File, cfg.Radar.Logging.Console)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	lg.Infof("RiskRadar starting")
	lg.Infof("Config loaded from: %s", configPath)
	lg.Infof("RPC: %s | start=%s | poll=%s | alert>=%d | deep>=%d",
		cfg.Radar.Chain.RPCURL,
		cfg.Radar.Chain.StartBlock,
		cfg.Radar.Chain.PollInterval,
		cfg.Radar.Triage.AlertMinScore,
		cfg.Radar.Triage.DeepThreshold,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	chainClient, err := chain.Dial(ctx, chain.Config{
		RPCURL:         cfg.Radar.Chain.RPCURL,
		RequestTimeout: cfg.Radar.Chain.RequestTimeout,
	})
	if err != nil {
		lg.Errorf("Failed to connect to chain RPC: %v", err)
		log.Fatalf("Failed to connect to chain RPC: %v", err)
	}

	store := buildStore(cfg, lg)

	var enricher pipeline.Enricher
	if cfg.Radar.Enrichment.Enabled {
		c, err := enrich.NewClient(enrich.Config{
			APIURL:  cfg.Radar.Enrichment.APIURL,
			APIKey:  cfg.Radar.Enrichment.APIKey,
			Timeout: cfg.Radar.Enrichment.Timeout,
		})
		if err != nil {
			lg.Errorf("Failed to create enrichment client: %v", err)
			log.Fatalf("Failed to create enrichment client: %v", err)
		}
		enricher = c
		lg.Infof("Enrichment: %s", cfg.Radar.Enrichment.APIURL)
	} else {
		lg.Infof("Enrichment: disabled")
	}

	fastEval, deepEval := buildEvaluators(cfg, lg)
	sinks := buildSinks(cfg, lg)

	dispatcher := dispatch.NewDispatcher(sinks, cfg.Radar.Alerts.SendTimeout, lg, m)

	pipe := pipeline.NewEscalation(pipeline.Config{
		AlertMinScore:  cfg.Radar.Triage.AlertMinScore,
		DeepThreshold:  cfg.Radar.Triage.DeepThreshold,
		MaxReportChars: cfg.Radar.Triage.MaxReportChars,
		ExplorerURL:    cfg.Radar.Triage.ExplorerURL,
	}, enricher, fastEval, deepEval, dispatcher, lg, m)

	loop := scan.NewLoop(scan.Config{
		StartBlock:   cfg.Radar.Chain.StartBlock,
		PollInterval: cfg.Radar.Chain.PollInterval,
		BatchCap:     cfg.Radar.Chain.BatchCap,
	}, chainClient, pipe, store, lg, m)

	var metricsServer *http.Server
	if cfg.Radar.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{Addr: cfg.Radar.Metrics.Addr, Handler: mux}
		go func() {
			lg.Infof("Metrics listening on %s", cfg.Radar.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				lg.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	go func() {
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			lg.Errorf("Scan loop error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	lg.Infof("Shutting down")
	cancel()
	time.Sleep(1 * time.Second)

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			lg.Errorf("Error stopping metrics server: %v", err)
		}
		shutdownCancel()
	}
	if err := dispatcher.Close(); err != nil {
		lg.Errorf("Error closing alert channels: %v", err)
	}
	if err := store.Close(); err != nil {
		lg.Errorf("Error closing checkpoint store: %v", err)
	}
	if err := chainClient.Close(); err != nil {
		lg.Errorf("Error closing chain client: %v", err)
	}

	lg.Infof("RiskRadar stopped")
}
