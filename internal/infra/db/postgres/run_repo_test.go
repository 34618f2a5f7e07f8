package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
)

func TestJSONOrEmpty(t *testing.T) {
	assert.Equal(t, "{}", jsonOrEmpty("  "))
	assert.Equal(t, `{"a":1}`, jsonOrEmpty(`{"a":1}`))
	assert.Equal(t, "-", stringOrDash(""))
}

// Runs against a real server when INSIGHT_TEST_POSTGRES_DSN is set.
func TestRunRepository_RoundTrip(t *testing.T) {
	dsn := os.Getenv("INSIGHT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INSIGHT_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	repo := NewRunRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))

	tenant := "test-" + uuid.NewString()[:8]
	older := &domain.Run{
		ID: domain.RunID(uuid.NewString()), TenantID: tenant, Provider: "fake",
		Status: domain.RunFailed, ErrorKind: domain.KindInvalidResponse,
		CreatedAt: time.Now().Add(-time.Minute),
	}
	newer := &domain.Run{
		ID: domain.RunID(uuid.NewString()), TenantID: tenant, Provider: "fake",
		Status: domain.RunSucceeded, ResultJSON: `{"score":87}`, CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))

	page, err := repo.Paginate(ctx, tenant, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, newer.ID, page[0].ID)
	assert.Equal(t, domain.KindInvalidResponse, page[1].ErrorKind)

	_, err = repo.Get(ctx, tenant, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
