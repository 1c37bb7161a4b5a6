package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/app-platform/internal/domain"
)

// AppRepository encapsulates app persistence.
type AppRepository interface {
	Create(ctx context.Context, app *domain.App) error
	GetByID(ctx context.Context, id string) (*domain.App, error)
	GetByReleaseName(ctx context.Context, releaseName string) (*domain.App, error)
	ListByUser(ctx context.Context, userID string) ([]domain.App, error)
	ListByState(ctx context.Context, state domain.AppState) ([]domain.App, error)
	UpdateSettings(ctx context.Context, app *domain.App) error
	// UpdateStateWhere applies a state transition only when the current
	// state is one of from. Returns whether a row was updated; transitions
	// arriving out of order are rejected by the store, not by locks.
	UpdateStateWhere(ctx context.Context, id string, from []domain.AppState, to domain.AppState) (bool, error)
}

type appRepository struct {
	pool *pgxpool.Pool
}

// NewAppRepository instantiates the repository.
func NewAppRepository(pool *pgxpool.Pool) AppRepository {
	return &appRepository{pool: pool}
}

const appColumns = `id, user_id, release_name, name, template, domain, env, state, created_at, updated_at`

func (r *appRepository) Create(ctx context.Context, app *domain.App) error {
	env, err := marshalEnv(app.Env)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO apps (user_id, release_name, name, template, domain, env, state)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		app.UserID,
		app.ReleaseName,
		app.Name,
		app.Template,
		app.Domain,
		env,
		app.State,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
}

func (r *appRepository) GetByID(ctx context.Context, id string) (*domain.App, error) {
	query := fmt.Sprintf(`SELECT %s FROM apps WHERE id=$1`, appColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *appRepository) GetByReleaseName(ctx context.Context, releaseName string) (*domain.App, error) {
	query := fmt.Sprintf(`SELECT %s FROM apps WHERE release_name=$1`, appColumns)
	return r.fetchSingle(ctx, query, releaseName)
}

func (r *appRepository) ListByUser(ctx context.Context, userID string) ([]domain.App, error) {
	query := fmt.Sprintf(`SELECT %s FROM apps WHERE user_id=$1 ORDER BY created_at`, appColumns)
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanApps(rows)
}

func (r *appRepository) ListByState(ctx context.Context, state domain.AppState) ([]domain.App, error) {
	query := fmt.Sprintf(`SELECT %s FROM apps WHERE state=$1 ORDER BY created_at`, appColumns)
	rows, err := r.pool.Query(ctx, query, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanApps(rows)
}

// UpdateSettings persists the user-editable fields (name, domain, env).
func (r *appRepository) UpdateSettings(ctx context.Context, app *domain.App) error {
	env, err := marshalEnv(app.Env)
	if err != nil {
		return err
	}
	const query = `
        UPDATE apps SET name=$1, domain=$2, env=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, app.Name, app.Domain, env, app.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appRepository) UpdateStateWhere(ctx context.Context, id string, from []domain.AppState, to domain.AppState) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("empty source state set")
	}
	args := []any{to, id}
	placeholders := make([]string, len(from))
	for i, state := range from {
		args = append(args, state)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(
		`UPDATE apps SET state=$1, updated_at=NOW() WHERE id=$2 AND state IN (%s)`,
		strings.Join(placeholders, ","))

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *appRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.App, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	app, err := scanApp(row)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func scanApp(row pgx.Row) (*domain.App, error) {
	var app domain.App
	var env []byte
	if err := row.Scan(
		&app.ID,
		&app.UserID,
		&app.ReleaseName,
		&app.Name,
		&app.Template,
		&app.Domain,
		&env,
		&app.State,
		&app.CreatedAt,
		&app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalEnv(env, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func scanApps(rows pgx.Rows) ([]domain.App, error) {
	var result []domain.App
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *app)
	}
	return result, rows.Err()
}

func marshalEnv(env map[string]string) ([]byte, error) {
	if env == nil {
		env = map[string]string{}
	}
	return json.Marshal(env)
}

func unmarshalEnv(raw []byte, app *domain.App) error {
	if len(raw) == 0 {
		app.Env = map[string]string{}
		return nil
	}
	return json.Unmarshal(raw, &app.Env)
}
