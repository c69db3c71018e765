package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/internal/graph"
	"github.com/dyike/CortexAgents/internal/memory"
)

// Engine is one generation of the analysis engine, tagged with the config
// it was built from.
type Engine struct {
	*graph.Engine
	Config  config.Config
	BuiltAt time.Time
	Version uint64
}

// EngineBuilder turns a config into a ready engine. graph.Build is the
// production builder; tests swap in scripted models.
type EngineBuilder func(ctx context.Context, cfg config.Config, bank memory.Bank, opts ...graph.Option) (*graph.Engine, error)

var engineSeq atomic.Uint64

func buildEngine(ctx context.Context, builder EngineBuilder, cfg config.Config, bank memory.Bank, opts ...graph.Option) (*Engine, error) {
	e, err := builder(ctx, cfg, bank, opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Engine:  e,
		Config:  cfg,
		BuiltAt: time.Now(),
		Version: engineSeq.Add(1),
	}, nil
}
