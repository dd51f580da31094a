package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	dto "cryptopay/internal/entity"
	"cryptopay/internal/repository"
)

// Catalog rows are immutable seed data, so a long cache TTL is safe.
const catalogCacheTTL = time.Hour

type CatalogRepository struct {
	db     *pgxpool.Pool
	redis  *redis.Client
	logger *zap.Logger
}

func NewCatalogRepository(db *pgxpool.Pool, redis *redis.Client, logger *zap.Logger) repository.CatalogRepository {
	return &CatalogRepository{
		db:     db,
		redis:  redis,
		logger: logger.With(zap.String("component", "catalog_repository")),
	}
}

func (cr *CatalogRepository) ListPackages(ctx context.Context) ([]*dto.CreditPackage, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	const cacheKey = "credit_packages"

	if cached, err := cr.redis.Get(ctx, cacheKey).Result(); err == nil {
		var packages []*dto.CreditPackage
		if err := json.Unmarshal([]byte(cached), &packages); err == nil {
			return packages, nil
		}
		cr.logger.Warn("failed to unmarshal cached packages", zap.Error(err))
	}

	query := `SELECT id, name, price, credits FROM credit_packages ORDER BY price ASC`

	rows, err := cr.db.Query(ctx, query)
	if err != nil {
		cr.logger.Error("failed to query credit packages", zap.Error(err))
		return nil, fmt.Errorf("failed to query credit packages: %w", err)
	}
	defer rows.Close()

	var packages []*dto.CreditPackage
	for rows.Next() {
		var pkg dto.CreditPackage
		if err := rows.Scan(&pkg.ID, &pkg.Name, &pkg.Price, &pkg.Credits); err != nil {
			cr.logger.Error("failed to scan credit package row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan credit package row: %w", err)
		}
		packages = append(packages, &pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if data, err := json.Marshal(packages); err == nil {
		if err := cr.redis.Set(ctx, cacheKey, data, catalogCacheTTL).Err(); err != nil {
			cr.logger.Warn("failed to cache packages", zap.Error(err))
		}
	}

	return packages, nil
}

func (cr *CatalogRepository) GetPackageByID(ctx context.Context, id string) (*dto.CreditPackage, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT id, name, price, credits FROM credit_packages WHERE id = $1`

	var pkg dto.CreditPackage
	err := cr.db.QueryRow(ctx, query, id).Scan(&pkg.ID, &pkg.Name, &pkg.Price, &pkg.Credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dto.ErrPackageNotFound
		}
		cr.logger.Error("failed to fetch credit package",
			zap.String("package_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch credit package %s: %w", id, err)
	}

	return &pkg, nil
}
