// Package memory provides an in-process player repository for tests and
// for running the server without a database.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/ambonmud/server/internal/game/player"
)

// Repository keeps player records in a map keyed by lowercased name.
// Safe for concurrent use.
type Repository struct {
	mu      sync.RWMutex
	records map[string]*player.Record
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{records: make(map[string]*player.Record)}
}

// FindByName returns a copy of the record for name, case-insensitively.
func (r *Repository) FindByName(_ context.Context, name string) (*player.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[strings.ToLower(name)]
	if !ok {
		return nil, player.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Save inserts or updates the record under its lowercased name.
func (r *Repository) Save(_ context.Context, rec *player.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(rec.Name)
	if existing, ok := r.records[key]; ok && existing.ID != rec.ID {
		return player.ErrNameTaken
	}
	cp := *rec
	r.records[key] = &cp
	return nil
}

// Exists reports whether a record exists for name.
func (r *Repository) Exists(_ context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[strings.ToLower(name)]
	return ok, nil
}

// Count returns the number of stored records.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
