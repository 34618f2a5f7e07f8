package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
)

func TestRunRepository_SaveGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(0)
	run := &domain.Run{ID: "r1", TenantID: "acme", Status: domain.RunSucceeded}
	require.NoError(t, repo.Save(ctx, run))

	run.Status = domain.RunFailed // caller mutations do not leak in
	got, err := repo.Get(ctx, "acme", "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, got.Status)

	_, err = repo.Get(ctx, "other", "r1")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunRepository_PaginateNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, &domain.Run{
			ID:        domain.RunID(fmt.Sprintf("r%d", i)),
			TenantID:  "acme",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	first, err := repo.Paginate(ctx, "acme", 1, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, domain.RunID("r4"), first[0].ID)
	assert.Equal(t, domain.RunID("r3"), first[1].ID)

	last, err := repo.Paginate(ctx, "acme", 3, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, domain.RunID("r0"), last[0].ID)

	empty, err := repo.Paginate(ctx, "acme", 9, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRunRepository_CapsPerTenant(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(2)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, &domain.Run{ID: domain.RunID(fmt.Sprintf("r%d", i)), TenantID: "acme"}))
	}

	_, err := repo.Get(ctx, "acme", "r0")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	all, err := repo.Paginate(ctx, "acme", 1, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunRepository_SaveUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(0)
	require.NoError(t, repo.Save(ctx, &domain.Run{ID: "r1", TenantID: "acme", Attempts: 1}))
	require.NoError(t, repo.Save(ctx, &domain.Run{ID: "r1", TenantID: "acme", Attempts: 3}))

	all, err := repo.Paginate(ctx, "acme", 1, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 3, all[0].Attempts)
}
