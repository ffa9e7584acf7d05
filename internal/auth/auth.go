package auth

import (
	"context"
	"sort"
	"sync"

	"dailylog-bot/internal/apperr"
)

// Repository persists the allow-list. Superusers are not part of it.
type Repository interface {
	LoadAll(ctx context.Context) ([]int64, error)
	Save(ctx context.Context, ids []int64) error
}

// Registry answers access checks. It trusts its caller: checking that only
// superusers grant or revoke is the dispatcher's job.
type Registry struct {
	repo       Repository
	mu         sync.RWMutex
	superusers map[int64]struct{}
	allowed    map[int64]struct{}
}

// NewWithRepo loads the persisted allow-list once. A nil repo keeps the list
// in memory only.
func NewWithRepo(ctx context.Context, repo Repository, superusers []int64) (*Registry, error) {
	r := &Registry{
		repo:       repo,
		superusers: make(map[int64]struct{}, len(superusers)),
		allowed:    make(map[int64]struct{}),
	}
	for _, id := range superusers {
		r.superusers[id] = struct{}{}
	}
	if repo != nil {
		ids, err := repo.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			r.allowed[id] = struct{}{}
		}
	}
	return r, nil
}

func (r *Registry) IsAuthorized(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.superusers[userID]; ok {
		return true
	}
	_, ok := r.allowed[userID]
	return ok
}

func (r *Registry) IsSuperuser(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.superusers[userID]
	return ok
}

// Grant adds userID and persists the whole list before returning. On a
// failed persist the in-memory list is left as it was.
func (r *Registry) Grant(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.allowed[userID]; ok {
		return nil
	}
	r.allowed[userID] = struct{}{}
	if err := r.persistLocked(ctx); err != nil {
		delete(r.allowed, userID)
		return err
	}
	return nil
}

// Revoke removes userID and persists the whole list. Superusers cannot be
// revoked.
func (r *Registry) Revoke(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.superusers[userID]; ok {
		return apperr.Validation("user %d is a superuser", userID)
	}
	if _, ok := r.allowed[userID]; !ok {
		return nil
	}
	delete(r.allowed, userID)
	if err := r.persistLocked(ctx); err != nil {
		r.allowed[userID] = struct{}{}
		return err
	}
	return nil
}

// List returns the persisted allow-list, sorted. Superusers are not included.
func (r *Registry) List() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.allowed)
}

// Superusers returns the fixed superuser ids, sorted.
func (r *Registry) Superusers() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.superusers)
}

func (r *Registry) persistLocked(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	return r.repo.Save(ctx, sortedIDs(r.allowed))
}

func sortedIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
