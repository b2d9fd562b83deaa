// core/orgtree.go
//
// Organizational-unit tree queries: assembling the forest from flat
// parent-pointer rows, pre-order flattening for indented selectors, display
// paths, and descendant-id collection for "this unit and everything beneath
// it" filters.
package core

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Pirog87/SecurePosture-sub000/models"
)

// FlatUnit is one row of a pre-order traversal.
type FlatUnit struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Depth int                `json:"depth"`
}

// BuildTree assembles the forest from flat rows, preserving the given order
// among siblings. Rows whose parent is missing from the input are treated as
// roots, so a partial slice still yields a usable forest.
func BuildTree(units []models.OrgUnit) []*models.OrgUnit {
	nodes := make(map[primitive.ObjectID]*models.OrgUnit, len(units))
	order := make([]*models.OrgUnit, 0, len(units))
	for i := range units {
		u := units[i]
		u.Children = nil
		nodes[u.ID] = &u
		order = append(order, &u)
	}

	var roots []*models.OrgUnit
	for _, n := range order {
		if n.ParentID != nil {
			if parent, ok := nodes[*n.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// Flatten returns the forest in pre-order: every parent precedes its
// children, siblings keep their order.
func Flatten(roots []*models.OrgUnit) []FlatUnit {
	var out []FlatUnit
	var walk func(n *models.OrgUnit, depth int)
	walk = func(n *models.OrgUnit, depth int) {
		out = append(out, FlatUnit{ID: n.ID, Name: n.Name, Depth: depth})
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
	return out
}

// BuildPathMap maps every unit id to its "Parent / Child / Grandchild"
// display path. Built once per tree and reused for display and filter
// matching.
func BuildPathMap(roots []*models.OrgUnit) map[primitive.ObjectID]string {
	paths := make(map[primitive.ObjectID]string)
	var walk func(n *models.OrgUnit, prefix string)
	walk = func(n *models.OrgUnit, prefix string) {
		path := n.Name
		if prefix != "" {
			path = prefix + " / " + n.Name
		}
		paths[n.ID] = path
		for _, c := range n.Children {
			walk(c, path)
		}
	}
	for _, r := range roots {
		walk(r, "")
	}
	return paths
}

// CollectDescendantIDs returns rootID plus every id in its subtree. An
// unknown rootID yields an empty set, not an error; this is a read-only
// query and degrades quietly.
func CollectDescendantIDs(roots []*models.OrgUnit, rootID primitive.ObjectID) map[primitive.ObjectID]struct{} {
	ids := make(map[primitive.ObjectID]struct{})
	target := findUnit(roots, rootID)
	if target == nil {
		return ids
	}
	var walk func(n *models.OrgUnit)
	walk = func(n *models.OrgUnit) {
		ids[n.ID] = struct{}{}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(target)
	return ids
}

func findUnit(roots []*models.OrgUnit, id primitive.ObjectID) *models.OrgUnit {
	for _, r := range roots {
		if r.ID == id {
			return r
		}
		if found := findUnit(r.Children, id); found != nil {
			return found
		}
	}
	return nil
}
