// Package app owns the long-lived pieces of a process: config, storage,
// the service and the engine, which is rebuilt whenever the config file
// changes.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/internal/graph"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/memory"
	"github.com/dyike/CortexAgents/internal/service"
	"github.com/dyike/CortexAgents/internal/storage/sqlite"
)

type Option func(*Runtime)

func WithBuilder(builder EngineBuilder) Option {
	return func(r *Runtime) {
		if builder != nil {
			r.builder = builder
		}
	}
}

func WithNotifier(fn func(topic, payload string)) Option {
	return func(r *Runtime) {
		r.notify = fn
	}
}

// WithObserver adds obs next to the service recorder on every engine.
func WithObserver(obs graph.Observer) Option {
	return func(r *Runtime) {
		if obs != nil {
			r.observers = append(r.observers, obs)
		}
	}
}

type Runtime struct {
	cfgMgr  *config.Manager
	store   *sqlite.Store
	memory  memory.Bank
	service *service.Service
	engine  atomic.Pointer[Engine]

	builder   EngineBuilder
	observers []graph.Observer
	notify    func(string, string)
	cancel    context.CancelFunc
}

// NewRuntime opens storage for the current config, builds the first engine
// and starts watching the config file. Storage paths and memory persistence
// are fixed for the life of the runtime.
func NewRuntime(ctx context.Context, cfgMgr *config.Manager, opts ...Option) (*Runtime, error) {
	if cfgMgr == nil {
		return nil, fmt.Errorf("config manager is required")
	}

	rt := &Runtime{
		cfgMgr:  cfgMgr,
		builder: graph.Build,
	}
	for _, opt := range opts {
		opt(rt)
	}

	cfg := cfgMgr.Get()
	logger.SetLevel(cfg.LogLevel)
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	rt.store = store

	if cfg.MemoryPersist {
		bank, err := memory.OpenPersistentBank(ctx, store, nil)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		rt.memory = bank
	} else {
		rt.memory = memory.NewInMemoryBank(nil)
	}
	rt.service = service.New(store, service.Options{ResultsDir: cfg.ResultsDir, WriteReports: cfg.WriteReports})

	if err := rt.reload(ctx, cfg, nil); err != nil {
		_ = rt.service.Close()
		_ = store.Close()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancel = cancel
	if err := cfgMgr.Watch(watchCtx, func(ch config.Change) {
		rt.applyChange(watchCtx, ch)
	}); err != nil {
		_ = rt.Close()
		return nil, err
	}

	return rt, nil
}

func (r *Runtime) Engine() *Engine {
	return r.engine.Load()
}

func (r *Runtime) Service() *service.Service {
	return r.service
}

func (r *Runtime) Config() config.Config {
	return r.cfgMgr.Get()
}

func (r *Runtime) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	var err error
	if r.service != nil {
		err = r.service.Close()
	}
	if r.store != nil {
		if cerr := r.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (r *Runtime) UpdateConfigJSON(jsonStr string) error {
	return r.cfgMgr.UpdateFromJSON(jsonStr)
}

// applyChange rebuilds the engine unless only process level fields changed.
// Storage fields are kept until restart.
func (r *Runtime) applyChange(ctx context.Context, ch config.Change) {
	log := logger.L().With().Str("source", ch.Source).Strs("fields", ch.Fields).Logger()
	if deferred := ch.Deferred(); len(deferred) > 0 {
		log.Warn().Strs("deferred", deferred).Msg("storage settings apply after restart")
	}

	if !ch.RebuildsEngine() {
		logger.SetLevel(ch.Current.LogLevel)
		log.Info().Msg("config applied without engine rebuild")
		r.publish("config.applied", map[string]any{"fields": ch.Fields})
		return
	}
	if err := r.reload(ctx, ch.Current, ch.Fields); err != nil {
		log.Error().Err(err).Msg("engine reload failed, keeping previous engine")
	}
}

func (r *Runtime) reload(ctx context.Context, cfg config.Config, changed []string) error {
	logger.SetLevel(cfg.LogLevel)

	observers := append([]graph.Observer{r.service.Observer()}, r.observers...)
	engine, err := buildEngine(ctx, r.builder, cfg, r.memory, graph.WithObserver(graph.Observers(observers...)))
	if err != nil {
		r.publish("engine.reload_failed", map[string]any{
			"error":  err.Error(),
			"fields": changed,
		})
		return err
	}
	r.engine.Store(engine)
	r.service.SetEngine(engine.Engine)
	logger.L().Info().Uint64("version", engine.Version).Strs("fields", changed).Msg("engine ready")
	r.publish("engine.reloaded", map[string]any{
		"version":  engine.Version,
		"built_at": engine.BuiltAt.UTC().Format(time.RFC3339),
		"fields":   changed,
	})
	return nil
}

func (r *Runtime) publish(topic string, payload map[string]any) {
	if r.notify == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.L().Warn().Err(err).Str("topic", topic).Msg("encode notification")
		return
	}
	r.notify(topic, string(data))
}
