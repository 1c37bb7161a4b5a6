package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/app-platform/internal/domain"
)

// TemplateRepository reads the installable template catalog.
type TemplateRepository interface {
	ListActive(ctx context.Context) ([]domain.Template, error)
	GetByName(ctx context.Context, name string) (*domain.Template, error)
}

type templateRepository struct {
	pool *pgxpool.Pool
}

// NewTemplateRepository instantiates the repository.
func NewTemplateRepository(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepository{pool: pool}
}

func (r *templateRepository) ListActive(ctx context.Context) ([]domain.Template, error) {
	const query = `
        SELECT name, title, description, price_cents, active, created_at
        FROM templates WHERE active=TRUE ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Template
	for rows.Next() {
		var tpl domain.Template
		if err := rows.Scan(&tpl.Name, &tpl.Title, &tpl.Description, &tpl.PriceCents, &tpl.Active, &tpl.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tpl)
	}
	return result, rows.Err()
}

func (r *templateRepository) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	const query = `
        SELECT name, title, description, price_cents, active, created_at
        FROM templates WHERE name=$1`
	var tpl domain.Template
	if err := r.pool.QueryRow(ctx, query, name).Scan(
		&tpl.Name, &tpl.Title, &tpl.Description, &tpl.PriceCents, &tpl.Active, &tpl.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &tpl, nil
}
