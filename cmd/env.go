package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundqa/internal/assistant"
	"github.com/sells-group/fundqa/internal/compose"
	"github.com/sells-group/fundqa/internal/db"
	"github.com/sells-group/fundqa/internal/embed"
	"github.com/sells-group/fundqa/internal/index"
	"github.com/sells-group/fundqa/internal/retrieval"
	"github.com/sells-group/fundqa/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "data/mutual_funds.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// indexEnv is an index store plus whatever must be closed with it.
type indexEnv struct {
	Store   index.Store
	closers []func() error
}

func (e *indexEnv) Close() {
	for _, c := range e.closers {
		_ = c()
	}
}

// initIndexStore selects the file or Postgres index backend. The Postgres
// backend shares the configured database.
func initIndexStore(ctx context.Context) (*indexEnv, error) {
	switch cfg.Index.Backend {
	case "file":
		return &indexEnv{Store: index.NewFileStore(cfg.Index.Path)}, nil
	case "postgres":
		if cfg.Store.Driver != "postgres" {
			return nil, eris.New("index backend postgres requires store.driver postgres")
		}
		ps, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		pg := index.NewPGStore(ps.Pool())
		if err := pg.Migrate(ctx); err != nil {
			_ = ps.Close()
			return nil, eris.Wrap(err, "migrate index")
		}
		return &indexEnv{Store: pg, closers: []func() error{ps.Close}}, nil
	default:
		return nil, eris.Errorf("unsupported index backend: %s", cfg.Index.Backend)
	}
}

// qaEnv is everything needed to answer questions.
type qaEnv struct {
	Engine *retrieval.Engine
	index  *indexEnv
}

func (e *qaEnv) Close() { e.index.Close() }

// NewAssistant builds an assistant over the shared engine. An empty key
// falls back to the configured one.
func (e *qaEnv) NewAssistant(apiKey string) (*assistant.Assistant, error) {
	ac := cfg.Anthropic
	if apiKey != "" {
		ac.Key = apiKey
	}
	gen := compose.NewGenerator(ac, cfg.Resilience)
	return assistant.New(e.Engine, compose.New(gen), assistant.OptionsFromConfig(cfg.Retrieval)), nil
}

// initQA loads the embedding index and checks it against the configured
// embedder. A model mismatch is fatal.
func initQA(ctx context.Context) (*qaEnv, error) {
	e, err := embed.New(cfg.Embedding, cfg.Resilience)
	if err != nil {
		return nil, err
	}

	ie, err := initIndexStore(ctx)
	if err != nil {
		return nil, err
	}

	ix, err := index.Open(ctx, ie.Store, e)
	if err != nil {
		ie.Close()
		if eris.Is(err, index.ErrModelMismatch) {
			zap.L().Error("index was built with a different embedding model; run `fundqa embed` again",
				zap.String("embedder", e.Model()))
		}
		return nil, eris.Wrap(err, "open index")
	}

	return &qaEnv{Engine: retrieval.NewEngine(e, ix), index: ie}, nil
}

func timeoutSecs(secs int, def time.Duration) time.Duration {
	if secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}
