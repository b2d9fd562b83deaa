// core/linkage.go
//
// Link management between actions and the records they remediate. The
// Action's Links slice is the single source of truth; entity-side "linked
// actions" views are built by querying actions, never stored twice. The host
// storage must serialize link mutations per action; these helpers assume a
// single mutator at a time.
package core

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Pirog87/SecurePosture-sub000/models"
)

// Linkable entity types.
const (
	EntityRisk      = "risk"
	EntityException = "exception"
	EntityAsset     = "asset"
)

func validEntityType(t string) bool {
	return t == EntityRisk || t == EntityException || t == EntityAsset
}

// Link attaches the action to the given entity. Linking an already-linked
// pair is a no-op; the returned bool reports whether the set changed.
func Link(a *models.Action, entityType string, entityID primitive.ObjectID) (bool, error) {
	if !validEntityType(entityType) {
		return false, validationErrorf("unknown entity type %q", entityType)
	}
	if entityID.IsZero() {
		return false, validationErrorf("entity id is required")
	}
	if IsLinked(a, entityType, entityID) {
		return false, nil
	}
	a.Links = append(a.Links, models.EntityRef{EntityType: entityType, EntityID: entityID})
	return true, nil
}

// Unlink removes the matching pair. Unlinking a pair that is not present is
// a no-op.
func Unlink(a *models.Action, entityType string, entityID primitive.ObjectID) (bool, error) {
	if !validEntityType(entityType) {
		return false, validationErrorf("unknown entity type %q", entityType)
	}
	for i, ref := range a.Links {
		if ref.EntityType == entityType && ref.EntityID == entityID {
			a.Links = append(a.Links[:i], a.Links[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// IsLinked reports whether the action carries the given pair.
func IsLinked(a *models.Action, entityType string, entityID primitive.ObjectID) bool {
	for _, ref := range a.Links {
		if ref.EntityType == entityType && ref.EntityID == entityID {
			return true
		}
	}
	return false
}
