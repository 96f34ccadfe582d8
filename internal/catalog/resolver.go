package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"vtex/migrator/internal/client"
	"vtex/migrator/internal/domain"
	"vtex/migrator/internal/state"

	log "github.com/sirupsen/logrus"
)

const treeCheckpoint = "category_tree"

// nodeKey is the de-duplication identity of a category: its parent plus
// its case-folded normalized name. Departments use parentID 0.
type nodeKey struct {
	parentID int64
	name     string
}

// Resolver owns the in-memory category tree built from the remote catalog
// and from local creations. It maps a product's breadcrumb path to a leaf
// category id, creating missing nodes, and guarantees that repeated runs
// against the same remote state never create duplicate branches.
type Resolver struct {
	gateway     client.CatalogGateway
	checkpoints state.Manager

	departments map[string]*domain.CategoryNode // case-folded name -> root node
	categories  map[nodeKey]*domain.CategoryNode
	byID        map[int64]*domain.CategoryNode

	departmentsCreated int
	categoriesCreated  int
}

func NewResolver(gateway client.CatalogGateway, checkpoints state.Manager) *Resolver {
	return &Resolver{
		gateway:     gateway,
		checkpoints: checkpoints,
		departments: make(map[string]*domain.CategoryNode),
		categories:  make(map[nodeKey]*domain.CategoryNode),
		byID:        make(map[int64]*domain.CategoryNode),
	}
}

type treeSnapshot struct {
	Departments map[string]*domain.CategoryNode `json:"departments"`
	Categories  map[string]*domain.CategoryNode `json:"categories"`
}

// Restore runs the two-phase merge: load the local checkpoint first, then
// reconcile against a remote listing snapshot. Local entries are never
// deleted; remote entries are only added when absent by identity key.
func (r *Resolver) Restore(ctx context.Context) error {
	var snap treeSnapshot
	found, err := r.checkpoints.Load(ctx, treeCheckpoint, &snap)
	if err != nil {
		return fmt.Errorf("load category tree checkpoint: %w", err)
	}
	if found {
		for _, node := range snap.Categories {
			r.add(node)
		}
		log.Infof("Restored category tree checkpoint: %d nodes", len(snap.Categories))
	}
	r.Reconcile(ctx)
	return nil
}

// Reconcile lists all categories from the remote system and layers them
// under the local state. A listing failure is logged and treated as "no
// existing entries"; any duplicate-creation attempt that causes is
// absorbed later by the create-or-reuse protocol.
func (r *Resolver) Reconcile(ctx context.Context) {
	remote, err := r.gateway.ListCategories(ctx)
	if err != nil {
		log.Warnf("Failed to list remote categories, proceeding as if none exist: %v", err)
		return
	}

	byID := make(map[int64]domain.Category, len(remote))
	for _, c := range remote {
		byID[c.ID] = c
	}

	for _, c := range remote {
		r.add(&domain.CategoryNode{
			ID:             c.ID,
			NormalizedName: normalizeCategoryName(c.Name),
			ParentID:       c.ParentID,
			CreatedLocally: false,
			Path:           remotePath(byID, c),
		})
	}
	log.Debugf("Reconciled against %d remote categories", len(remote))
}

// remotePath rebuilds the root-to-leaf display path from the remote
// parent-id field. The depth cap guards against parent cycles in a
// corrupted catalog.
func remotePath(byID map[int64]domain.Category, c domain.Category) string {
	parts := []string{normalizeCategoryName(c.Name)}
	for depth := 0; c.ParentID != nil && depth < 16; depth++ {
		parent, ok := byID[*c.ParentID]
		if !ok {
			break
		}
		parts = append([]string{normalizeCategoryName(parent.Name)}, parts...)
		c = parent
	}
	return strings.Join(parts, " > ")
}

func (r *Resolver) keyFor(parentID *int64, name string) nodeKey {
	var parent int64
	if parentID != nil {
		parent = *parentID
	}
	return nodeKey{parentID: parent, name: strings.ToLower(name)}
}

// add inserts a node unless one already exists under the same identity
// key. Local entries always win over later remote discoveries.
func (r *Resolver) add(node *domain.CategoryNode) *domain.CategoryNode {
	key := r.keyFor(node.ParentID, node.NormalizedName)
	if existing, ok := r.categories[key]; ok {
		return existing
	}
	r.categories[key] = node
	r.byID[node.ID] = node
	if node.IsDepartment() {
		name := strings.ToLower(node.NormalizedName)
		if _, ok := r.departments[name]; !ok {
			r.departments[name] = node
		}
	}
	return node
}

// Resolve maps an ordered breadcrumb path to a category id using only
// state already known locally. The second return is false when no
// department/path combination matches and the caller must create.
func (r *Resolver) Resolve(path []domain.CategoryPathSegment) (int64, bool) {
	segs := stripReservedRoots(path)
	if len(segs) == 0 {
		return 0, false
	}

	// Direct mode: the first segment names a known department. Walk the
	// remaining segments and return the deepest node matched, even when
	// the tail is unmatched. The partial return is deliberate: creating
	// the missing tail is EnsureResolved's job, not Resolve's.
	if dept, ok := r.departments[matchKey(segs[0].Name)]; ok {
		current := dept.ID
		for _, seg := range segs[1:] {
			node, ok := r.categories[nodeKey{parentID: current, name: matchKey(seg.Name)}]
			if !ok {
				break
			}
			current = node.ID
		}
		return current, true
	}

	// Fallback mode: the breadcrumb omits the department. Try each known
	// department as the implicit root; accept only a department under
	// which every segment matches (segments equal to the department's own
	// name are skippable).
	for _, deptName := range r.sortedDepartmentKeys() {
		dept := r.departments[deptName]
		current := dept.ID
		matchedAny := false
		matchedAll := true
		for _, seg := range segs {
			key := matchKey(seg.Name)
			if key == strings.ToLower(dept.NormalizedName) {
				continue
			}
			node, ok := r.categories[nodeKey{parentID: current, name: key}]
			if !ok {
				matchedAll = false
				break
			}
			current = node.ID
			matchedAny = true
		}
		if matchedAll && matchedAny {
			return current, true
		}
	}
	return 0, false
}

// EnsureResolved resolves a path, creating the unmatched suffix when
// needed. Only the suffix beyond the longest existing prefix is created,
// so repeated runs never duplicate branches.
func (r *Resolver) EnsureResolved(ctx context.Context, path []domain.CategoryPathSegment) (int64, error) {
	// Re-list first: earlier runs or manual catalog edits may have added
	// categories out-of-band since the last reconciliation.
	r.Reconcile(ctx)

	segs := stripReservedRoots(path)
	if len(segs) == 0 {
		return 0, fmt.Errorf("category path %v contains only reserved root markers", pathNames(path))
	}

	parentID, matched := r.longestExistingPrefix(segs)
	if matched == len(segs) {
		// Every segment already exists. A shorter prefix match falls
		// through to suffix creation below; Resolve's partial return
		// must not short-circuit it.
		return parentID, nil
	}
	if matched == 0 {
		// The first segment names no known department. Breadcrumbs that
		// omit the department can still resolve in fallback mode, which
		// only ever reports full matches.
		if id, ok := r.Resolve(path); ok {
			return id, nil
		}
		// Otherwise it becomes a brand-new department and the rest of
		// the chain goes under it.
		dept, err := r.ensureDepartment(ctx, segs[0])
		if err != nil {
			return 0, err
		}
		parentID = dept.ID
		matched = 1
	}

	current := parentID
	for _, seg := range segs[matched:] {
		node, err := r.ensureChild(ctx, current, seg)
		if err != nil {
			return 0, err
		}
		current = node.ID
	}
	return current, nil
}

// longestExistingPrefix walks every department whose name matches the
// first segment and returns the terminal id and length of the longest
// chain of already-existing nodes. Ties break on sorted department order,
// which keeps the choice deterministic.
func (r *Resolver) longestExistingPrefix(segs []domain.CategoryPathSegment) (int64, int) {
	var bestParent int64
	bestMatched := 0
	first := matchKey(segs[0].Name)

	for _, deptName := range r.sortedDepartmentKeys() {
		dept := r.departments[deptName]
		if first != strings.ToLower(dept.NormalizedName) {
			continue
		}
		current := dept.ID
		matched := 1
		for _, seg := range segs[1:] {
			node, ok := r.categories[nodeKey{parentID: current, name: matchKey(seg.Name)}]
			if !ok {
				break
			}
			current = node.ID
			matched++
		}
		if matched > bestMatched {
			bestMatched = matched
			bestParent = current
		}
	}
	return bestParent, bestMatched
}

func (r *Resolver) ensureDepartment(ctx context.Context, seg domain.CategoryPathSegment) (*domain.CategoryNode, error) {
	name := normalizeCategoryName(seg.Name)
	cat, err := r.gateway.CreateDepartment(ctx, name)
	if err != nil {
		if !client.IsConflict(err) {
			return nil, fmt.Errorf("create department %q: %w", name, err)
		}
		// Lost a race or local state was stale: the department exists
		// remotely. Re-list and adopt it.
		return r.adoptAfterConflict(ctx, nil, name)
	}

	node := r.add(&domain.CategoryNode{
		ID:             cat.ID,
		NormalizedName: name,
		CreatedLocally: true,
		Path:           name,
	})
	r.departmentsCreated++
	r.markVisible(ctx, node)
	r.persist(ctx)
	log.Infof("Created department %q (id %d)", name, node.ID)
	return node, nil
}

func (r *Resolver) ensureChild(ctx context.Context, parentID int64, seg domain.CategoryPathSegment) (*domain.CategoryNode, error) {
	name := normalizeCategoryName(seg.Name)
	if node, ok := r.categories[nodeKey{parentID: parentID, name: strings.ToLower(name)}]; ok {
		return node, nil
	}

	cat, err := r.gateway.CreateCategory(ctx, name, parentID)
	if err != nil {
		if !client.IsConflict(err) {
			return nil, fmt.Errorf("create category %q under %d: %w", name, parentID, err)
		}
		return r.adoptAfterConflict(ctx, &parentID, name)
	}

	path := name
	if parent, ok := r.byID[parentID]; ok {
		path = parent.Path + " > " + name
	}
	node := r.add(&domain.CategoryNode{
		ID:             cat.ID,
		NormalizedName: name,
		ParentID:       &parentID,
		CreatedLocally: true,
		Path:           path,
	})
	r.categoriesCreated++
	r.markVisible(ctx, node)
	r.persist(ctx)
	log.Infof("Created category %q (id %d, parent %d)", name, node.ID, parentID)
	return node, nil
}

// adoptAfterConflict recovers from a uniqueness conflict by re-listing
// the remote catalog and returning the pre-existing node.
func (r *Resolver) adoptAfterConflict(ctx context.Context, parentID *int64, name string) (*domain.CategoryNode, error) {
	r.Reconcile(ctx)
	if node, ok := r.categories[r.keyFor(parentID, name)]; ok {
		r.persist(ctx)
		return node, nil
	}
	return nil, fmt.Errorf("category %q conflicted on create but was not found on re-list", name)
}

// markVisible forces the node active and shown in the storefront. Being
// visible on site is a hard requirement of the pipeline, not left to the
// remote creation default.
func (r *Resolver) markVisible(ctx context.Context, node *domain.CategoryNode) {
	if err := r.gateway.UpdateCategoryVisibility(ctx, node.ID, true, true); err != nil {
		log.Warnf("Failed to update visibility for category %q (id %d): %v", node.NormalizedName, node.ID, err)
	}
}

func (r *Resolver) persist(ctx context.Context) {
	snap := treeSnapshot{
		Departments: make(map[string]*domain.CategoryNode, len(r.departments)),
		Categories:  make(map[string]*domain.CategoryNode, len(r.categories)),
	}
	for name, node := range r.departments {
		snap.Departments[name] = node
	}
	for key, node := range r.categories {
		snap.Categories[strconv.FormatInt(key.parentID, 10)+"::"+key.name] = node
	}
	if err := r.checkpoints.Save(ctx, treeCheckpoint, snap); err != nil {
		log.Warnf("Failed to persist category tree checkpoint: %v", err)
	}
}

func (r *Resolver) sortedDepartmentKeys() []string {
	keys := make([]string, 0, len(r.departments))
	for name := range r.departments {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// DepartmentNames lists known departments, for skip diagnostics.
func (r *Resolver) DepartmentNames() []string {
	names := make([]string, 0, len(r.departments))
	for _, name := range r.sortedDepartmentKeys() {
		names = append(names, r.departments[name].NormalizedName)
	}
	return names
}

// NodeCount reports how many nodes the resolver currently tracks.
func (r *Resolver) NodeCount() int {
	return len(r.categories)
}

// CreatedCounts reports how many departments and categories this run
// created remotely.
func (r *Resolver) CreatedCounts() (departments, categories int) {
	return r.departmentsCreated, r.categoriesCreated
}
