package session

import (
	"sync"

	"proctorview/internal/proctor"
)

// Candidate bundles the per-candidate engine with its own monitor. Nothing
// is shared across candidates: each session gets an independent slot and
// lock.
type Candidate struct {
	Engine  *Engine
	Monitor *proctor.Monitor
}

// Registry creates and hands out per-candidate session runtimes.
type Registry struct {
	mu         sync.Mutex
	candidates map[string]*Candidate
	factory    func(candidateID string) *Candidate
}

func NewRegistry(factory func(candidateID string) *Candidate) *Registry {
	return &Registry{
		candidates: make(map[string]*Candidate),
		factory:    factory,
	}
}

// Get returns the candidate's runtime, creating it on first use.
func (r *Registry) Get(candidateID string) *Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.candidates[candidateID]; ok {
		return c
	}
	c := r.factory(candidateID)
	r.candidates[candidateID] = c
	return c
}
