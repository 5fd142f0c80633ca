package chat

import (
	"sync"

	"github.com/workspace/internal/model"
)

// Registry хранит по одному контроллеру на пользователя.
type Registry struct {
	deps Deps

	mu          sync.Mutex
	controllers map[string]*Controller
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, controllers: make(map[string]*Controller)}
}

// For возвращает контроллер пользователя, создавая его при первом обращении.
func (r *Registry) For(auth model.AuthState) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[auth.UserID]; ok {
		return c
	}
	c := NewController(auth, r.deps)
	r.controllers[auth.UserID] = c
	return c
}

// Drop забывает контроллер пользователя (выход из системы).
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, userID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}
