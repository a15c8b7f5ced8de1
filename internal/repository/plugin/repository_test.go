package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/shopfloor/internal/database/dbtest"
	"github.com/Additional-Code/shopfloor/internal/entity"
)

func TestActiveHooksByPriority(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	base := &entity.Plugin{Name: "base", Version: "1.0.0", IsActive: true}
	extra := &entity.Plugin{Name: "extra", Version: "0.2.0", Dependencies: []string{"base"}, IsActive: true}
	idle := &entity.Plugin{Name: "idle", Version: "0.1.0", Dependencies: []string{"base"}}
	for _, p := range []*entity.Plugin{base, extra, idle} {
		require.NoError(t, repo.Create(ctx, p))
	}

	hooks := []entity.PluginHook{
		{PluginID: base.ID, Hook: "order.created", Callback: "base.low", Priority: 1},
		{PluginID: extra.ID, Hook: "order.created", Callback: "extra.high", Priority: 10},
		{PluginID: idle.ID, Hook: "order.created", Callback: "idle.top", Priority: 99},
		{PluginID: base.ID, Hook: "order.completed", Callback: "base.done", Priority: 5},
	}
	for i := range hooks {
		require.NoError(t, repo.CreateHook(ctx, &hooks[i]))
	}

	got, err := repo.ActiveHooks(ctx, "order.created")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "extra.high", got[0].Callback)
	assert.Equal(t, "extra", got[0].PluginName)
	assert.Equal(t, "base.low", got[1].Callback)
	assert.Equal(t, "base", got[1].PluginName)

	deps, err := repo.Dependents(ctx, "base")
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "extra", deps[0].Name)
}

func TestSetActive(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	p := &entity.Plugin{Name: "reports", Version: "1.2.0"}
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.SetActive(ctx, p, true))
	got, err := repo.GetByName(ctx, "reports")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.NotNil(t, got.ActivatedAt)

	require.NoError(t, repo.SetActive(ctx, got, false))
	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	_, err = repo.GetByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
