package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/internal/logger"
)

// EinoDebugger starts the eino visual debug server when enabled in config.
type EinoDebugger struct {
	enabled bool
	port    int
}

func NewEinoDebugger(cfg config.Config) *EinoDebugger {
	return &EinoDebugger{
		enabled: cfg.EinoDebugEnabled,
		port:    cfg.EinoDebugPort,
	}
}

// Initialize must run before any chat model or graph is built so that
// devops can intercept them.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.enabled {
		return nil
	}

	logger.L().Info().Int("port", d.port).Msg("initializing eino debug plugin")
	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	logger.L().Info().Str("url", d.URL()).Msg("eino debug server ready")
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.enabled
}

func (d *EinoDebugger) URL() string {
	if !d.enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.port)
}
