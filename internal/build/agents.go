package build

import (
	"context"

	"github.com/ChamsBouzaiene/foreman/internal/engine"
	"github.com/ChamsBouzaiene/foreman/internal/roles"
)

// LoopAgents runs agents through the real engine loop. modelFor resolves
// per-role model overrides; it may be nil or return "" when no override is
// configured.
type LoopAgents struct {
	loop     *engine.Loop
	modelFor func(roleName string) string
}

func NewLoopAgents(loop *engine.Loop, modelFor func(string) string) *LoopAgents {
	return &LoopAgents{loop: loop, modelFor: modelFor}
}

func (a *LoopAgents) Run(ctx context.Context, roleName string, task engine.Task) (string, error) {
	role, err := roles.Get(roleName)
	if err != nil {
		return "", err
	}
	if a.modelFor != nil {
		role = roles.WithModel(role, a.modelFor(roleName))
	}
	return a.loop.Execute(ctx, role, task)
}
