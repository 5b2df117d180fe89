package repository

import (
	"context"
	"testing"

	"github.com/smallbiznis/givelane/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindByID(t *testing.T) {
	db := dbtest.Open(t)
	donorID, _ := dbtest.Seed(t, db, dbtest.Node(t), "INR")

	donor, err := Provide().FindByID(context.Background(), db, donorID)
	require.NoError(t, err)
	require.NotNil(t, donor)
	assert.Equal(t, "Asha Rao", donor.Name)
	assert.Contains(t, donor.Email, "@example.org")

	missing, err := Provide().FindByID(context.Background(), db, 12345)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
