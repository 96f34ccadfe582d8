package repository

import (
	"context"
	"fmt"

	"vtex/migrator/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationRepository persists what each run materialized, keyed by the
// product's source URL so re-runs overwrite rather than duplicate.
type MigrationRepository interface {
	SaveProduct(ctx context.Context, product *domain.MaterializedProduct) error
	SaveRunSummary(ctx context.Context, summary *domain.RunSummary) error
}

type migrationRepository struct {
	db *pgxpool.Pool
}

func NewMigrationRepository(db *pgxpool.Pool) MigrationRepository {
	return &migrationRepository{db: db}
}

func (r *migrationRepository) SaveProduct(ctx context.Context, product *domain.MaterializedProduct) error {
	query := `
	INSERT INTO materialized_products (source_url, remote_id, data)
	VALUES ($1, $2, $3)
	ON CONFLICT (source_url)
	DO UPDATE SET remote_id = $2, data = $3`
	_, err := r.db.Exec(ctx, query, product.URL, product.RemoteID, product)
	if err != nil {
		return fmt.Errorf("failed to save materialized product %s: %w", product.URL, err)
	}
	return nil
}

func (r *migrationRepository) SaveRunSummary(ctx context.Context, summary *domain.RunSummary) error {
	query := `
	INSERT INTO run_summaries (run_id, data)
	VALUES ($1, $2)
	ON CONFLICT (run_id)
	DO UPDATE SET data = $2`
	_, err := r.db.Exec(ctx, query, summary.RunID, summary)
	if err != nil {
		return fmt.Errorf("failed to save run summary %s: %w", summary.RunID, err)
	}
	return nil
}
