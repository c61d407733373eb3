package database

import (
	"context"
	"testing"

	"sparkclean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countDefaults(addrs []models.Address) int {
	n := 0
	for _, a := range addrs {
		if a.IsDefault {
			n++
		}
	}
	return n
}

func TestAddresses_FirstIsDefault(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := &models.Address{UserID: 1, Street: "1 Main St", City: "Springfield"}
	changed, err := db.CreateAddress(ctx, first)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.True(t, first.IsDefault)

	second := &models.Address{UserID: 1, Street: "2 Side St", City: "Springfield"}
	_, err = db.CreateAddress(ctx, second)
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	third := &models.Address{UserID: 1, Street: "3 High St", City: "Springfield", IsDefault: true}
	changed, err = db.CreateAddress(ctx, third)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, first.ID, changed[0].ID)
	assert.False(t, changed[0].IsDefault)

	addrs, err := db.ListAddresses(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, addrs, 3)
	assert.Equal(t, 1, countDefaults(addrs))
	assert.Equal(t, third.ID, addrs[0].ID)
}

func TestSetDefaultAddress(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var ids []int64
	for _, street := range []string{"1 Main St", "2 Side St", "3 High St"} {
		a := &models.Address{UserID: 7, Street: street, City: "Springfield"}
		_, err := db.CreateAddress(ctx, a)
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	other := &models.Address{UserID: 8, Street: "9 Else St", City: "Shelbyville"}
	_, err := db.CreateAddress(ctx, other)
	require.NoError(t, err)

	addrs, err := db.SetDefaultAddress(ctx, 7, ids[2])
	require.NoError(t, err)
	assert.Equal(t, 1, countDefaults(addrs))
	assert.Equal(t, ids[2], addrs[0].ID)

	// Repeating is harmless
	addrs, err = db.SetDefaultAddress(ctx, 7, ids[2])
	require.NoError(t, err)
	assert.Equal(t, 1, countDefaults(addrs))

	// Another user's address cannot be claimed
	_, err = db.SetDefaultAddress(ctx, 7, other.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	otherAddrs, err := db.ListAddresses(ctx, 8)
	require.NoError(t, err)
	assert.True(t, otherAddrs[0].IsDefault)
}

func TestDeleteAddress_PromotesNext(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := &models.Address{UserID: 1, Street: "1 Main St", City: "Springfield"}
	second := &models.Address{UserID: 1, Street: "2 Side St", City: "Springfield"}
	_, err := db.CreateAddress(ctx, first)
	require.NoError(t, err)
	_, err = db.CreateAddress(ctx, second)
	require.NoError(t, err)

	deleted, promoted, err := db.DeleteAddress(ctx, 1, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, deleted.ID)
	require.NotNil(t, promoted)
	assert.Equal(t, second.ID, promoted.ID)

	addrs, err := db.ListAddresses(ctx, 1)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.True(t, addrs[0].IsDefault)

	_, _, err = db.DeleteAddress(ctx, 2, second.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAddress(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := &models.Address{UserID: 1, Street: "1 Main St", City: "Springfield"}
	_, err := db.CreateAddress(ctx, a)
	require.NoError(t, err)

	a.Label = "Home"
	require.NoError(t, db.UpdateAddress(ctx, a))

	got, err := db.GetAddress(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Home", got.Label)
	assert.True(t, got.IsDefault)

	a.UserID = 2
	assert.ErrorIs(t, db.UpdateAddress(ctx, a), ErrNotFound)
}
