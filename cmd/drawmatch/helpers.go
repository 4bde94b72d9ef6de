package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerock/drawmatch/internal/engine"
	"github.com/ledgerock/drawmatch/internal/llm"
	"github.com/ledgerock/drawmatch/internal/match"
	"github.com/ledgerock/drawmatch/internal/model"
	"github.com/ledgerock/drawmatch/internal/notify"
	"github.com/ledgerock/drawmatch/internal/storage"
)

const defaultDBPath = "drawmatch.db"

// openStorage opens the configured database and applies pending migrations.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	path := viper.GetString("database.path")
	if path == "" {
		path = defaultDBPath
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// matchConfig reads scoring weights and thresholds, falling back to the
// calibrated defaults for anything unset.
func matchConfig() match.Config {
	cfg := match.DefaultConfig()

	if v := viper.GetFloat64("matching.weights.amount"); v > 0 {
		cfg.AmountWeight = v
	}
	if v := viper.GetFloat64("matching.weights.trade"); v > 0 {
		cfg.TradeWeight = v
	}
	if v := viper.GetFloat64("matching.weights.keyword"); v > 0 {
		cfg.KeywordWeight = v
	}
	if v := viper.GetFloat64("matching.weights.training"); v > 0 {
		cfg.TrainingWeight = v
	}
	if v := viper.GetFloat64("matching.auto_match_score"); v > 0 {
		cfg.AutoMatchScore = v
	}
	if v := viper.GetFloat64("matching.clear_winner_gap"); v > 0 {
		cfg.ClearWinnerGap = v
	}
	if v := viper.GetFloat64("matching.min_candidate_score"); v > 0 {
		cfg.MinCandidateScore = v
	}
	if v := viper.GetInt("matching.max_ai_candidates"); v > 0 {
		cfg.MaxAICandidates = v
	}

	return cfg
}

// buildSelector creates the AI selection gate, or a selector that always
// declines when no LLM provider is configured. Declines fall back to the top
// deterministic candidate, so matching stays usable without an API key.
func buildSelector(cfg match.Config) engine.Selector {
	provider := viper.GetString("llm.provider")
	if provider == "" {
		slog.Warn("No LLM provider configured, ambiguous matches will not use AI selection")
		return declineSelector{}
	}

	client, err := llm.NewClient(llm.Config{
		Provider:    provider,
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		Timeout:     viper.GetDuration("llm.timeout"),
	})
	if err != nil {
		slog.Warn("Failed to create LLM client, ambiguous matches will not use AI selection", "error", err)
		return declineSelector{}
	}

	timeout := viper.GetDuration("llm.timeout")
	return engine.NewGate(client, timeout, cfg.MaxAICandidates)
}

// buildEngine assembles the matching engine from configuration.
func buildEngine(store *storage.SQLiteStorage) *engine.MatchingEngine {
	cfg := engine.Config{
		Match:              matchConfig(),
		SelectionTimeout:   viper.GetDuration("llm.timeout"),
		RequireHumanReview: viper.GetBool("matching.require_human_review"),
	}
	if cfg.SelectionTimeout == 0 {
		cfg.SelectionTimeout = 30 * time.Second
	}

	var notifier engine.Notifier
	if url := viper.GetString("webhook.url"); url != "" {
		notifier = notify.NewWebhookNotifier(url)
	}

	return engine.New(store, buildSelector(cfg.Match), notifier, cfg)
}

// declineSelector satisfies engine.Selector when no AI provider is available.
type declineSelector struct{}

func (declineSelector) Select(_ context.Context, _ model.ExtractedInvoiceData, _ []model.MatchCandidate) model.AISelectionResponse {
	return model.AISelectionResponse{
		Reasoning:     "ai selection is not configured",
		FlagForReview: true,
		Factors:       model.SelectionFactors{Primary: model.SelectionReasonAIError},
	}
}
