package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/testhelpers"
)

func TestAdapter_Preview_Integration(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	adapter, err := New(ctx, db.ConnStr, 2, zap.NewNop())
	require.NoError(t, err)
	defer adapter.Close()

	result, err := adapter.Preview(ctx, "SELECT name FROM players WHERE brand_id = 10")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Plan)
	assert.Greater(t, result.EstimatedCost, 0.0)

	_, err = adapter.Preview(ctx, "SELECT nope FROM players")
	assert.Error(t, err)
}

func TestAdapter_Discover_Integration(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	adapter, err := New(ctx, db.ConnStr, 2, zap.NewNop())
	require.NoError(t, err)
	defer adapter.Close()

	snapshot, err := adapter.Discover(ctx)
	require.NoError(t, err)

	players := snapshot.Table("players")
	require.NotNil(t, players)
	assert.NotNil(t, players.Column("email"))
	assert.Equal(t, []string{"id"}, players.PrimaryKey)

	deposits := snapshot.Table("deposits")
	require.NotNil(t, deposits)
	assert.True(t, deposits.HasForeignKeyTo("players"))
}
