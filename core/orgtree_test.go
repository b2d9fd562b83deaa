package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Pirog87/SecurePosture-sub000/models"
)

// testForest builds:
//
//	Company
//	├── IT
//	│   ├── Security
//	│   └── Infrastructure
//	└── Finance
//	Branch Office
func testForest() ([]*models.OrgUnit, map[string]primitive.ObjectID) {
	ids := map[string]primitive.ObjectID{
		"company":        primitive.NewObjectID(),
		"it":             primitive.NewObjectID(),
		"security":       primitive.NewObjectID(),
		"infrastructure": primitive.NewObjectID(),
		"finance":        primitive.NewObjectID(),
		"branch":         primitive.NewObjectID(),
	}
	company := ids["company"]
	it := ids["it"]

	units := []models.OrgUnit{
		{ID: company, Name: "Company"},
		{ID: it, Name: "IT", ParentID: &company},
		{ID: ids["security"], Name: "Security", ParentID: &it},
		{ID: ids["infrastructure"], Name: "Infrastructure", ParentID: &it},
		{ID: ids["finance"], Name: "Finance", ParentID: &company},
		{ID: ids["branch"], Name: "Branch Office"},
	}
	return BuildTree(units), ids
}

func TestBuildTree(t *testing.T) {
	roots, ids := testForest()

	require.Len(t, roots, 2)
	assert.Equal(t, ids["company"], roots[0].ID)
	assert.Equal(t, ids["branch"], roots[1].ID)

	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, "IT", roots[0].Children[0].Name)
	assert.Equal(t, "Finance", roots[0].Children[1].Name)
	require.Len(t, roots[0].Children[0].Children, 2)
}

func TestFlattenPreOrder(t *testing.T) {
	roots, ids := testForest()
	flat := Flatten(roots)

	names := make([]string, len(flat))
	for i, f := range flat {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"Company", "IT", "Security", "Infrastructure", "Finance", "Branch Office"}, names)

	index := make(map[primitive.ObjectID]int, len(flat))
	for i, f := range flat {
		index[f.ID] = i
	}
	// Parents precede every one of their descendants.
	assert.Less(t, index[ids["company"]], index[ids["it"]])
	assert.Less(t, index[ids["company"]], index[ids["security"]])
	assert.Less(t, index[ids["it"]], index[ids["security"]])
	assert.Less(t, index[ids["it"]], index[ids["infrastructure"]])

	depths := map[string]int{"Company": 0, "IT": 1, "Security": 2, "Infrastructure": 2, "Finance": 1, "Branch Office": 0}
	for _, f := range flat {
		assert.Equal(t, depths[f.Name], f.Depth, f.Name)
	}
}

func TestBuildPathMap(t *testing.T) {
	roots, ids := testForest()
	paths := BuildPathMap(roots)

	assert.Equal(t, "Company", paths[ids["company"]])
	assert.Equal(t, "Company / IT", paths[ids["it"]])
	assert.Equal(t, "Company / IT / Security", paths[ids["security"]])
	assert.Equal(t, "Company / Finance", paths[ids["finance"]])
	assert.Equal(t, "Branch Office", paths[ids["branch"]])
	assert.Len(t, paths, 6)
}

func TestCollectDescendantIDs(t *testing.T) {
	roots, ids := testForest()

	all := CollectDescendantIDs(roots, ids["company"])
	assert.Len(t, all, 5)
	assert.Contains(t, all, ids["company"])
	assert.Contains(t, all, ids["security"])
	assert.NotContains(t, all, ids["branch"])

	itSet := CollectDescendantIDs(roots, ids["it"])
	assert.Len(t, itSet, 3)
	// A subtree's set is contained in every ancestor's set.
	for id := range itSet {
		assert.Contains(t, all, id)
	}

	leaf := CollectDescendantIDs(roots, ids["security"])
	assert.Len(t, leaf, 1)
	assert.Contains(t, leaf, ids["security"])
}

func TestCollectDescendantIDsUnknownRoot(t *testing.T) {
	roots, _ := testForest()
	got := CollectDescendantIDs(roots, primitive.NewObjectID())
	assert.Empty(t, got)
}

func TestBuildTreeOrphanedParentBecomesRoot(t *testing.T) {
	missing := primitive.NewObjectID()
	orphan := models.OrgUnit{ID: primitive.NewObjectID(), Name: "Orphan", ParentID: &missing}
	roots := BuildTree([]models.OrgUnit{orphan})
	require.Len(t, roots, 1)
	assert.Equal(t, "Orphan", roots[0].Name)
}
