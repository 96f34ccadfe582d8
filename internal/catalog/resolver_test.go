package catalog

import (
	"context"
	"testing"

	"vtex/migrator/internal/state"
)

func newTestResolver(t *testing.T, gateway *fakeGateway) *Resolver {
	t.Helper()
	r := NewResolver(gateway, state.NewMemoryManager())
	if err := r.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	return r
}

func TestResolveDirectPath(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(1, "Eletrônicos", nil)
	gateway.seedCategory(2, "Áudio", int64ptr(1))

	r := newTestResolver(t, gateway)

	id, ok := r.Resolve(seg("Eletrônicos", "Áudio"))
	if !ok || id != 2 {
		t.Fatalf("Resolve = (%d, %v), want (2, true)", id, ok)
	}
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(1, "ELETRONICOS", nil)
	gateway.seedCategory(2, "audio", int64ptr(1))

	r := newTestResolver(t, gateway)

	id, ok := r.Resolve(seg("eletronicos", "AUDIO"))
	if !ok || id != 2 {
		t.Fatalf("Resolve = (%d, %v), want (2, true)", id, ok)
	}
}

// A direct-mode walk that matches the department but not the whole tail
// returns the deepest node it reached. Pinned deliberately: creation of
// the missing tail belongs to EnsureResolved, not Resolve.
func TestResolvePartialPathReturnsDeepestMatch(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(1, "Eletrônicos", nil)
	gateway.seedCategory(2, "Áudio", int64ptr(1))

	r := newTestResolver(t, gateway)

	id, ok := r.Resolve(seg("Eletrônicos", "Áudio", "Fones"))
	if !ok || id != 2 {
		t.Fatalf("Resolve = (%d, %v), want (2, true)", id, ok)
	}
}

func TestResolveFallbackModeOmittedDepartment(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(1, "Casa", nil)
	gateway.seedCategory(2, "Mesa", int64ptr(1))
	gateway.seedCategory(3, "Cadeiras", int64ptr(2))

	r := newTestResolver(t, gateway)

	// Breadcrumb starts below the department.
	id, ok := r.Resolve(seg("Mesa", "Cadeiras"))
	if !ok || id != 3 {
		t.Fatalf("Resolve = (%d, %v), want (3, true)", id, ok)
	}
}

// Two departments, only the second holds the full chain: the fallback
// must pick the department where every segment matches, never a partial
// candidate encountered earlier in iteration order.
func TestResolveFallbackPicksFullyMatchingDepartment(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(1, "Acessórios", nil)
	gateway.seedCategory(2, "Bolsas", int64ptr(1))
	gateway.seedCategory(3, "Vestuário", nil)
	gateway.seedCategory(4, "Bolsas", int64ptr(3))
	gateway.seedCategory(5, "Couro", int64ptr(4))

	r := newTestResolver(t, gateway)

	id, ok := r.Resolve(seg("Bolsas", "Couro"))
	if !ok || id != 5 {
		t.Fatalf("Resolve = (%d, %v), want (5, true) under Vestuário", id, ok)
	}
}

// "Início" exists as a real department holding "Linhas"; there is no
// top-level "Linhas". The breadcrumb [Início, Linhas] must land on the
// child node, not report unresolved.
func TestResolveInicioAsRealDepartment(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(1, "Início", nil)
	gateway.seedCategory(2, "Linhas", int64ptr(1))

	r := newTestResolver(t, gateway)

	id, ok := r.Resolve(seg("Início", "Linhas"))
	if !ok || id != 2 {
		t.Fatalf("Resolve = (%d, %v), want (2, true)", id, ok)
	}
}

func TestResolveFallbackRequiresEverySegment(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(1, "Casa", nil)
	gateway.seedCategory(2, "Mesa", int64ptr(1))

	r := newTestResolver(t, gateway)

	if id, ok := r.Resolve(seg("Mesa", "Inexistente")); ok {
		t.Fatalf("Resolve matched %d, want no match", id)
	}
}

func TestResolveStripsReservedRoots(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(1, "Linhas", nil)
	gateway.seedCategory(2, "Bebê", int64ptr(1))

	r := newTestResolver(t, gateway)

	id, ok := r.Resolve(seg("Home", "Linhas", "Bebê"))
	if !ok || id != 2 {
		t.Fatalf("Resolve = (%d, %v), want (2, true)", id, ok)
	}
}

func TestEnsureResolvedCreatesOnlyMissingSuffix(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(1, "Moda", nil)
	gateway.seedCategory(2, "Masculino", int64ptr(1))

	r := newTestResolver(t, gateway)

	id, err := r.EnsureResolved(context.Background(), seg("Moda", "Masculino", "Camisetas"))
	if err != nil {
		t.Fatalf("EnsureResolved: %v", err)
	}

	departments, categories := r.CreatedCounts()
	if departments != 0 || categories != 1 {
		t.Fatalf("CreatedCounts = (%d, %d), want (0, 1)", departments, categories)
	}
	created, ok := gateway.findCategory("Camisetas", int64ptr(2))
	if !ok {
		t.Fatal("Camisetas was not created under Masculino")
	}
	if id != created.ID {
		t.Fatalf("EnsureResolved returned %d, want leaf id %d", id, created.ID)
	}
}

// A breadcrumb that omits the department but matches an existing chain
// end to end must reuse it, not grow a parallel department.
func TestEnsureResolvedReusesFallbackMatch(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(1, "Casa", nil)
	gateway.seedCategory(2, "Mesa", int64ptr(1))
	gateway.seedCategory(3, "Cadeiras", int64ptr(2))

	r := newTestResolver(t, gateway)

	id, err := r.EnsureResolved(context.Background(), seg("Mesa", "Cadeiras"))
	if err != nil {
		t.Fatalf("EnsureResolved: %v", err)
	}
	if id != 3 {
		t.Fatalf("EnsureResolved returned %d, want 3", id)
	}
	if departments, categories := r.CreatedCounts(); departments != 0 || categories != 0 {
		t.Fatalf("CreatedCounts = (%d, %d), want (0, 0)", departments, categories)
	}
}

func TestEnsureResolvedCreatesDepartmentChain(t *testing.T) {
	gateway := newFakeGateway()

	r := newTestResolver(t, gateway)

	id, err := r.EnsureResolved(context.Background(), seg("Novidades", "Lançamentos"))
	if err != nil {
		t.Fatalf("EnsureResolved: %v", err)
	}
	if id == 0 {
		t.Fatal("EnsureResolved returned zero id")
	}

	departments, categories := r.CreatedCounts()
	if departments != 1 || categories != 1 {
		t.Fatalf("CreatedCounts = (%d, %d), want (1, 1)", departments, categories)
	}
	if _, ok := gateway.findCategory("Novidades", nil); !ok {
		t.Fatal("department Novidades was not created")
	}
}

func TestEnsureResolvedIsIdempotentAcrossRuns(t *testing.T) {
	gateway := newFakeGateway()
	ctx := context.Background()

	first := newTestResolver(t, gateway)
	firstID, err := first.EnsureResolved(ctx, seg("Esporte", "Corrida", "Tênis"))
	if err != nil {
		t.Fatalf("first EnsureResolved: %v", err)
	}
	countAfterFirst := gateway.categoryCount()

	// Fresh resolver, no shared local state: everything must come from
	// reconciliation against the remote listing.
	second := newTestResolver(t, gateway)
	secondID, err := second.EnsureResolved(ctx, seg("Esporte", "Corrida", "Tênis"))
	if err != nil {
		t.Fatalf("second EnsureResolved: %v", err)
	}

	if firstID != secondID {
		t.Fatalf("re-run resolved to %d, want %d", secondID, firstID)
	}
	if gateway.categoryCount() != countAfterFirst {
		t.Fatalf("re-run grew the catalog from %d to %d categories", countAfterFirst, gateway.categoryCount())
	}
	if departments, categories := second.CreatedCounts(); departments != 0 || categories != 0 {
		t.Fatalf("re-run created (%d, %d) nodes, want (0, 0)", departments, categories)
	}
}

func TestEnsureResolvedAdoptsAfterConflict(t *testing.T) {
	gateway := newFakeGateway()
	gateway.seedCategory(7, "Jardim", nil)

	r := NewResolver(gateway, state.NewMemoryManager())
	// The first listing fails, so the resolver believes the department
	// does not exist and tries to create it. The conflict must be
	// absorbed by re-listing and adopting id 7.
	gateway.listFailures = 1

	id, err := r.EnsureResolved(context.Background(), seg("Jardim"))
	if err != nil {
		t.Fatalf("EnsureResolved: %v", err)
	}
	if id != 7 {
		t.Fatalf("EnsureResolved returned %d, want adopted id 7", id)
	}
	if departments, _ := r.CreatedCounts(); departments != 0 {
		t.Fatalf("conflict adoption counted %d created departments, want 0", departments)
	}
}

func TestRestoreMergesCheckpointWithRemote(t *testing.T) {
	gateway := newFakeGateway()
	checkpoints := state.NewMemoryManager()
	ctx := context.Background()

	first := NewResolver(gateway, checkpoints)
	if err := first.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := first.EnsureResolved(ctx, seg("Livros", "Infantil")); err != nil {
		t.Fatalf("EnsureResolved: %v", err)
	}

	// Remote gains a category out-of-band.
	gateway.seedCategory(50, "Revistas", nil)

	second := NewResolver(gateway, checkpoints)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if _, ok := second.Resolve(seg("Livros", "Infantil")); !ok {
		t.Fatal("checkpointed branch lost after restore")
	}
	if _, ok := second.Resolve(seg("Revistas")); !ok {
		t.Fatal("out-of-band remote category not merged on restore")
	}
}
