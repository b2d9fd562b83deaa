package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Pirog87/SecurePosture-sub000/models"
)

func TestLinkIsIdempotent(t *testing.T) {
	a := &models.Action{ID: primitive.NewObjectID(), Title: "patch TLS config"}
	riskID := primitive.NewObjectID()

	changed, err := Link(a, EntityRisk, riskID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = Link(a, EntityRisk, riskID)
	require.NoError(t, err)
	assert.False(t, changed)

	require.Len(t, a.Links, 1)
	assert.Equal(t, models.EntityRef{EntityType: EntityRisk, EntityID: riskID}, a.Links[0])
}

func TestLinkDistinguishesEntityTypes(t *testing.T) {
	a := &models.Action{ID: primitive.NewObjectID()}
	id := primitive.NewObjectID()

	// The same id under two types is two distinct pairs.
	_, err := Link(a, EntityRisk, id)
	require.NoError(t, err)
	_, err = Link(a, EntityException, id)
	require.NoError(t, err)
	assert.Len(t, a.Links, 2)
}

func TestUnlink(t *testing.T) {
	a := &models.Action{ID: primitive.NewObjectID()}
	riskID := primitive.NewObjectID()
	assetID := primitive.NewObjectID()

	_, err := Link(a, EntityRisk, riskID)
	require.NoError(t, err)
	_, err = Link(a, EntityAsset, assetID)
	require.NoError(t, err)

	changed, err := Unlink(a, EntityRisk, riskID)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, a.Links, 1)
	assert.Equal(t, EntityAsset, a.Links[0].EntityType)

	// Unlinking an absent pair is a no-op, not an error.
	changed, err = Unlink(a, EntityRisk, riskID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestLinkRejectsBadInput(t *testing.T) {
	a := &models.Action{ID: primitive.NewObjectID()}

	var vErr *ValidationError
	_, err := Link(a, "policy", primitive.NewObjectID())
	require.ErrorAs(t, err, &vErr)

	_, err = Link(a, EntityRisk, primitive.NilObjectID)
	require.ErrorAs(t, err, &vErr)

	_, err = Unlink(a, "policy", primitive.NewObjectID())
	require.ErrorAs(t, err, &vErr)

	assert.Empty(t, a.Links)
}

func TestIsLinked(t *testing.T) {
	a := &models.Action{ID: primitive.NewObjectID()}
	riskID := primitive.NewObjectID()

	assert.False(t, IsLinked(a, EntityRisk, riskID))
	_, err := Link(a, EntityRisk, riskID)
	require.NoError(t, err)
	assert.True(t, IsLinked(a, EntityRisk, riskID))
	assert.False(t, IsLinked(a, EntityException, riskID))
}
