package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
)

// RunRepository keeps runs in process memory. Used when no database is
// configured and by the CLI.
type RunRepository struct {
	mu   sync.RWMutex
	runs map[string][]*domain.Run // per tenant, insertion order
	byID map[domain.RunID]*domain.Run
	max  int
}

// NewRunRepository keeps at most max runs per tenant (0 means 1000).
func NewRunRepository(max int) *RunRepository {
	if max <= 0 {
		max = 1000
	}
	return &RunRepository{
		runs: map[string][]*domain.Run{},
		byID: map[domain.RunID]*domain.Run{},
		max:  max,
	}
}

func (r *RunRepository) Save(_ context.Context, run *domain.Run) error {
	cp := *run
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byID[run.ID]; ok {
		*old = cp
		return nil
	}
	list := append(r.runs[run.TenantID], &cp)
	if len(list) > r.max {
		drop := list[:len(list)-r.max]
		for _, d := range drop {
			delete(r.byID, d.ID)
		}
		list = append([]*domain.Run(nil), list[len(list)-r.max:]...)
	}
	r.runs[run.TenantID] = list
	r.byID[run.ID] = &cp
	return nil
}

func (r *RunRepository) Get(_ context.Context, tenant string, id domain.RunID) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.byID[id]
	if !ok || run.TenantID != tenant {
		return nil, domain.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

// Paginate returns runs newest first.
func (r *RunRepository) Paginate(_ context.Context, tenant string, page, pageSize int) ([]*domain.Run, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	r.mu.RLock()
	stored := r.runs[tenant]
	list := make([]*domain.Run, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		cp := *stored[i]
		list = append(list, &cp)
	}
	r.mu.RUnlock()

	// ties keep newest-inserted first
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	start := (page - 1) * pageSize
	if start >= len(list) {
		return []*domain.Run{}, nil
	}
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], nil
}
