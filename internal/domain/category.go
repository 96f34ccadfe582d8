package domain

// Category is a category entity as returned by the VTEX catalog API.
// A ParentID of nil marks a department (tree root).
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
}

// CategoryNode is the resolver's view of a category that has been
// discovered remotely or created during this (or a previous) run.
//
// Uniqueness invariant: no two nodes share the same (ParentID,
// NormalizedName) pair. That pair is the identity key used both locally
// and when matching against the remote catalog.
type CategoryNode struct {
	ID             int64  `json:"id"`
	NormalizedName string `json:"normalized_name"`
	ParentID       *int64 `json:"parent_id"`
	CreatedLocally bool   `json:"created_locally"`
	Path           string `json:"path"`
}

// IsDepartment reports whether the node is a tree root.
func (n *CategoryNode) IsDepartment() bool {
	return n.ParentID == nil
}

// CategoryPathSegment is one level of a product's category breadcrumb as
// extracted from the source site, root to leaf. Level numbers are hints
// from the extractor, not authoritative.
type CategoryPathSegment struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}
