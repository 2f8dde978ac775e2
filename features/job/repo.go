package job

import (
	"context"
	"database/sql"
)

type Repository interface {
	Record(ctx context.Context, postID, errMsg string) (*Job, error)
	List(ctx context.Context) ([]Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Delete(ctx context.Context, id string) error
	DeleteByPost(ctx context.Context, postID string) error
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Record upserts the failure for a post. Repeated failures bump the retry
// counter and keep only the latest error.
func (r *PostgresRepo) Record(ctx context.Context, postID, errMsg string) (*Job, error) {
	query := `INSERT INTO failed_generations (post_id, error) VALUES ($1, $2)
		ON CONFLICT (post_id) DO UPDATE SET error = EXCLUDED.error, retries = failed_generations.retries + 1, updated_at = NOW()
		RETURNING id, post_id, error, retries, created_at, updated_at`
	j := &Job{}
	err := r.db.QueryRowContext(ctx, query, postID, errMsg).Scan(&j.ID, &j.PostID, &j.Error, &j.Retries, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Job, error) {
	query := `SELECT id, post_id, error, retries, created_at, updated_at FROM failed_generations ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.PostID, &j.Error, &j.Retries, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	j := &Job{}
	query := `SELECT id, post_id, error, retries, created_at, updated_at FROM failed_generations WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&j.ID, &j.PostID, &j.Error, &j.Retries, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM failed_generations WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) DeleteByPost(ctx context.Context, postID string) error {
	query := `DELETE FROM failed_generations WHERE post_id = $1`
	_, err := r.db.ExecContext(ctx, query, postID)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM failed_generations`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
