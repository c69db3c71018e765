package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"

	"github.com/dyike/CortexAgents/internal/graph"
	"github.com/dyike/CortexAgents/internal/service"
	"github.com/dyike/CortexAgents/models"
)

// Service is what the host can call into.
type Service interface {
	StartAnalysis(ctx context.Context, params models.AgentInitParams) (string, error)
	History(ctx context.Context, params models.HistoryParams) (*service.HistoryPage, error)
	GetSession(ctx context.Context, id string) (*service.SessionDetail, error)
	ListMessages(ctx context.Context, id string) ([]models.MessageRecord, error)
	Reflect(ctx context.Context, id string, params models.ReflectParams) ([]models.MemoryRecord, error)
}

type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

type sessionRef struct {
	SessionID string  `json:"session_id"`
	Returns   float64 `json:"returns"`
}

// Dispatch routes method with its JSON params and returns a JSON Response.
// Analyses run in the background; progress arrives through Notify.
func Dispatch(ctx context.Context, svc Service, version, method, paramsJSON string) string {
	var (
		result any
		err    error
	)

	switch method {
	case "system.info":
		result = map[string]string{"version": version, "go": runtime.Version(), "os": runtime.GOOS, "arch": runtime.GOARCH}
	case "agent.run":
		var p models.AgentInitParams
		if err = decode(paramsJSON, &p); err == nil {
			var id string
			id, err = svc.StartAnalysis(ctx, p)
			result = map[string]string{"session_id": id}
		}
	case "agent.history":
		var p models.HistoryParams
		if err = decode(paramsJSON, &p); err == nil {
			result, err = svc.History(ctx, p)
		}
	case "agent.history.info":
		var p sessionRef
		if err = decode(paramsJSON, &p); err == nil {
			result, err = svc.GetSession(ctx, p.SessionID)
		}
	case "agent.history.messages":
		var p sessionRef
		if err = decode(paramsJSON, &p); err == nil {
			result, err = svc.ListMessages(ctx, p.SessionID)
		}
	case "agent.reflect":
		var p sessionRef
		if err = decode(paramsJSON, &p); err == nil {
			result, err = svc.Reflect(ctx, p.SessionID, models.ReflectParams{Returns: p.Returns})
		}
	default:
		return jsonResp(404, "Method not found", nil)
	}
	if err != nil {
		return jsonResp(errorCode(err), err.Error(), nil)
	}
	return jsonResp(200, "Ok", result)
}

var errBadParams = errors.New("invalid params")

func decode(raw string, dst any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: %v", errBadParams, err)
	}
	return nil
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, errBadParams):
		return 400
	case errors.Is(err, service.ErrNotFound):
		return 404
	case errors.Is(err, graph.ErrNoDecision):
		return 409
	case errors.Is(err, service.ErrNoEngine):
		return 503
	}
	return 500
}

func jsonResp(code int, msg string, data any) string {
	b, _ := json.Marshal(Response{Code: code, Msg: msg, Data: data})
	return string(b)
}
