package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/audit"
	"github.com/sells-group/leadscan/internal/cardsource"
	"github.com/sells-group/leadscan/internal/classifier"
	"github.com/sells-group/leadscan/internal/job"
	"github.com/sells-group/leadscan/internal/ocr"
	"github.com/sells-group/leadscan/internal/store"
	"github.com/sells-group/leadscan/pkg/anthropic"
)

// env bundles the wired pipeline for commands.
type env struct {
	Store store.Store
	Orch  *job.Orchestrator
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadscan.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	engine, err := ocr.NewEngine(cfg.OCR)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	orch := job.New(
		st,
		cardsource.NewHTTPSource(cfg.CardSource),
		ocr.NewExtractor(engine),
		classifier.NewLLM(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic),
		audit.NewRecorder(st, cfg.Audit.Actor),
		*cfg,
	)
	return &env{Store: st, Orch: orch}, nil
}
