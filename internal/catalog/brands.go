package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vtex/migrator/internal/client"
	"vtex/migrator/internal/domain"
	"vtex/migrator/internal/state"

	log "github.com/sirupsen/logrus"
)

const brandsCheckpoint = "brands"

// defaultBrandSentinel is the extractor's placeholder for "no brand
// found". Products carrying it are skipped by the caller rather than
// being assigned a placeholder brand.
const defaultBrandSentinel = "default"

// ErrNoBrand marks a brand name that must not be resolved or created.
var ErrNoBrand = errors.New("no usable brand name")

// BrandRegistry resolves free-text brand names to remote brand ids,
// case-insensitively, creating on miss. Flat sibling of the resolver.
type BrandRegistry struct {
	gateway     client.CatalogGateway
	checkpoints state.Manager

	entries      map[string]*domain.BrandEntry // case-folded name
	remoteLoaded bool
	created      int
}

func NewBrandRegistry(gateway client.CatalogGateway, checkpoints state.Manager) *BrandRegistry {
	return &BrandRegistry{
		gateway:     gateway,
		checkpoints: checkpoints,
		entries:     make(map[string]*domain.BrandEntry),
	}
}

func (b *BrandRegistry) Restore(ctx context.Context) error {
	var entries map[string]*domain.BrandEntry
	found, err := b.checkpoints.Load(ctx, brandsCheckpoint, &entries)
	if err != nil {
		return fmt.Errorf("load brands checkpoint: %w", err)
	}
	if found {
		b.entries = entries
		log.Infof("Restored brands checkpoint: %d entries", len(entries))
	}
	return nil
}

// Resolve returns the remote id for a brand name, creating the brand when
// neither the local map nor the remote listing knows it.
func (b *BrandRegistry) Resolve(ctx context.Context, name string) (int64, error) {
	normalized := normalizeBrandName(name)
	key := strings.ToLower(normalized)
	if key == "" || key == defaultBrandSentinel {
		return 0, fmt.Errorf("brand %q: %w", name, ErrNoBrand)
	}

	if entry, ok := b.entries[key]; ok {
		return entry.ID, nil
	}

	b.loadRemote(ctx)
	if entry, ok := b.entries[key]; ok {
		return entry.ID, nil
	}

	brand, err := b.gateway.CreateBrand(ctx, normalized)
	if err != nil {
		if !client.IsConflict(err) {
			return 0, fmt.Errorf("create brand %q: %w", normalized, err)
		}
		// Exists remotely despite the cache miss: re-list and adopt.
		b.remoteLoaded = false
		b.loadRemote(ctx)
		if entry, ok := b.entries[key]; ok {
			return entry.ID, nil
		}
		return 0, fmt.Errorf("brand %q conflicted on create but was not found on re-list", normalized)
	}

	entry := &domain.BrandEntry{ID: brand.ID, NormalizedName: normalized, CreatedLocally: true}
	b.entries[key] = entry
	b.created++
	b.persist(ctx)
	log.Infof("Created brand %q (id %d)", normalized, brand.ID)
	return entry.ID, nil
}

func (b *BrandRegistry) loadRemote(ctx context.Context) {
	if b.remoteLoaded {
		return
	}
	brands, err := b.gateway.ListBrands(ctx)
	if err != nil {
		log.Warnf("Failed to list remote brands, proceeding as if none exist: %v", err)
		return
	}
	for _, brand := range brands {
		normalized := normalizeBrandName(brand.Name)
		key := strings.ToLower(normalized)
		if key == "" {
			continue
		}
		if _, ok := b.entries[key]; !ok {
			b.entries[key] = &domain.BrandEntry{ID: brand.ID, NormalizedName: normalized}
		}
	}
	b.remoteLoaded = true
	b.persist(ctx)
}

func (b *BrandRegistry) persist(ctx context.Context) {
	if err := b.checkpoints.Save(ctx, brandsCheckpoint, b.entries); err != nil {
		log.Warnf("Failed to persist brands checkpoint: %v", err)
	}
}

// Created reports how many brands this run created remotely.
func (b *BrandRegistry) Created() int {
	return b.created
}
