// Package llmtest provides a scripted Completer for exercising agents
// without a model backend.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexAgents/internal/llm"
)

type Call struct {
	Agent    string
	Messages []*schema.Message
}

// Scripted answers per agent: queued replies first, then the agent's
// standing reply, then the default. Safe for concurrent use.
type Scripted struct {
	mu       sync.Mutex
	queued   map[string][]string
	always   map[string]string
	handlers map[string]llm.CompleterFunc
	def      string
	hasDef   bool
	calls    []Call
}

func New() *Scripted {
	return &Scripted{
		queued:   make(map[string][]string),
		always:   make(map[string]string),
		handlers: make(map[string]llm.CompleterFunc),
	}
}

// Reply queues one-shot replies for agent.
func (s *Scripted) Reply(agent string, replies ...string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[agent] = append(s.queued[agent], replies...)
	return s
}

func (s *Scripted) Always(agent, reply string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.always[agent] = reply
	return s
}

// Handle routes every call for agent to fn.
func (s *Scripted) Handle(agent string, fn llm.CompleterFunc) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[agent] = fn
	return s
}

// Fail makes every call for agent return err.
func (s *Scripted) Fail(agent string, err error) *Scripted {
	return s.Handle(agent, func(context.Context, string, []*schema.Message) (string, error) {
		return "", err
	})
}

func (s *Scripted) Default(reply string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def = reply
	s.hasDef = true
	return s
}

func (s *Scripted) Complete(ctx context.Context, agent string, msgs []*schema.Message) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Agent: agent, Messages: msgs})
	if fn, ok := s.handlers[agent]; ok {
		s.mu.Unlock()
		return fn(ctx, agent, msgs)
	}
	defer s.mu.Unlock()

	if q := s.queued[agent]; len(q) > 0 {
		s.queued[agent] = q[1:]
		return q[0], nil
	}
	if r, ok := s.always[agent]; ok {
		return r, nil
	}
	if s.hasDef {
		return s.def, nil
	}
	return "", fmt.Errorf("llmtest: no reply scripted for %s", agent)
}

// Calls returns the calls made for agent, or all calls when agent is empty.
func (s *Scripted) Calls(agent string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, 0, len(s.calls))
	for _, c := range s.calls {
		if agent == "" || c.Agent == agent {
			out = append(out, c)
		}
	}
	return out
}
