package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/money"
)

const projectColumns = `id, name, status, progress, deadline, description, created_at, updated_at`

type ProjectRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db, now: time.Now}
}

func (r *ProjectRepository) List(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if filter.Status != "" {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+projectColumns+` FROM projects WHERE status = $1 ORDER BY id LIMIT $2 OFFSET $3
`, string(filter.Status), limitOrDefault(filter.Limit), max(filter.Skip, 0))
	} else {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+projectColumns+` FROM projects ORDER BY id LIMIT $1 OFFSET $2
`, limitOrDefault(filter.Limit), max(filter.Skip, 0))
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int64) (domain.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, notFound("project", id)
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepository) Create(ctx context.Context, p domain.Project) (domain.Project, error) {
	if p.Status == "" {
		p.Status = domain.ProjectPending
	}
	if err := domain.ValidateProject(p); err != nil {
		return domain.Project{}, err
	}
	now := r.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	err := r.db.QueryRowContext(ctx, `
INSERT INTO projects (name, status, progress, deadline, description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id
`, p.Name, string(p.Status), p.Progress, p.Deadline, p.Description, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepository) Update(ctx context.Context, id int64, patch domain.ProjectPatch) (domain.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, fmt.Errorf("begin project update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := scanProject(tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, notFound("project", id)
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("load project: %w", err)
	}
	updated, err := domain.ApplyProjectPatch(current, patch)
	if err != nil {
		return domain.Project{}, err
	}
	updated.UpdatedAt = r.now().UTC()

	_, err = tx.ExecContext(ctx, `
UPDATE projects
SET name = $2, status = $3, progress = $4, deadline = $5, description = $6, updated_at = $7
WHERE id = $1
`, id, updated.Name, string(updated.Status), updated.Progress, updated.Deadline, updated.Description, updated.UpdatedAt)
	if err != nil {
		return domain.Project{}, fmt.Errorf("update project: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, fmt.Errorf("commit project update: %w", err)
	}
	return updated, nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project rows affected: %w", err)
	}
	if rows == 0 {
		return notFound("project", id)
	}
	return nil
}

func (r *ProjectRepository) Stats(ctx context.Context) (domain.ProjectStats, error) {
	stats := domain.ProjectStats{
		ByStatus: map[domain.ProjectStatus]int{
			domain.ProjectPending:    0,
			domain.ProjectInProgress: 0,
			domain.ProjectCompleted:  0,
			domain.ProjectCancelled:  0,
		},
	}
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*), COALESCE(SUM(progress), 0) FROM projects GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("project stats: %w", err)
	}
	defer rows.Close()

	progress := 0
	for rows.Next() {
		var (
			status  string
			count   int
			progSum int
		)
		if err := rows.Scan(&status, &count, &progSum); err != nil {
			return stats, fmt.Errorf("scan project stats: %w", err)
		}
		stats.ByStatus[domain.ProjectStatus(status)] = count
		stats.TotalProjects += count
		progress += progSum
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate project stats: %w", err)
	}
	if stats.TotalProjects > 0 {
		stats.AverageProgress = money.Round2(float64(progress) / float64(stats.TotalProjects))
	}
	return stats, nil
}

func scanProject(row scanner) (domain.Project, error) {
	var (
		p      domain.Project
		status string
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&status,
		&p.Progress,
		&p.Deadline,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	p.Status = domain.ProjectStatus(status)
	return p, err
}
