package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/abhisek/revise/internal/config"
	"github.com/abhisek/revise/internal/evaluation"
	"github.com/abhisek/revise/internal/llm"
	"github.com/abhisek/revise/internal/logger"
	"github.com/abhisek/revise/internal/session"
	"github.com/abhisek/revise/internal/store"
	"github.com/abhisek/revise/internal/submission"
	"github.com/spf13/cobra"
)

// deps is everything a session needs, built once per command from config.
type deps struct {
	cfg    *config.Config
	log    *logger.Logger
	store  *store.Store
	remote evaluation.Remote
	sink   session.Sink
}

func buildDeps(cmd *cobra.Command) (*deps, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	remote, err := buildRemote(cmd.Context(), cfg, st.EventRepo(), log)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &deps{
		cfg:    cfg,
		log:    log,
		store:  st,
		remote: remote,
		sink:   buildSink(cfg, st, log),
	}, nil
}

func (d *deps) Close() {
	d.store.Close()
	d.log.Sync()
}

// sessionOptions returns session options for ownerID, falling back to the
// configured owner.
func (d *deps) sessionOptions(ownerID string) session.Options {
	if ownerID == "" {
		ownerID = d.cfg.Submission.OwnerID
	}
	return session.Options{
		OwnerID:     ownerID,
		Remote:      d.remote,
		EvalTimeout: d.cfg.Evaluator.Timeout,
		BypassCache: d.cfg.Evaluator.BypassCache,
		Sink:        d.sink,
		Logger:      d.log,
	}
}

// buildRemote returns nil when no remote evaluator is available. Questions
// that need one then fall back to exact match or stay pending.
func buildRemote(ctx context.Context, cfg *config.Config, repo store.EventRepo, log *logger.Logger) (evaluation.Remote, error) {
	switch cfg.Evaluator.Mode {
	case "none":
		return nil, nil
	case "http":
		return evaluation.NewHTTPRemote(cfg.Evaluator.URL, &http.Client{Timeout: cfg.Evaluator.Timeout}), nil
	}

	lc, err := cfg.LLM.Resolve()
	if errors.Is(err, config.ErrNoProvider) {
		log.Warn("no LLM provider configured; answers needing semantic grading will fall back")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(ctx, lc, repo, log)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	log.Debug("LLM grader ready", "provider", lc.Provider)
	return evaluation.NewLLMRemote(provider, evaluation.LLMRemoteConfig{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}), nil
}

func buildSink(cfg *config.Config, st *store.Store, log *logger.Logger) session.Sink {
	if cfg.Submission.Mode == "http" {
		return submission.NewHTTPSink(submission.HTTPConfig{
			URL:          cfg.Submission.URL,
			Timeout:      cfg.Submission.Timeout,
			TokenURL:     cfg.Submission.TokenURL,
			ClientID:     cfg.Submission.ClientID,
			ClientSecret: cfg.Submission.ClientSecret,
			Scopes:       cfg.Submission.Scopes,
		})
	}
	return submission.NewStoreSink(st.BatchRepo(), log)
}
