package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/money"
)

const materialColumns = `id, name, quantity, unit, price, supplier, project_id, category, source_file, created_at, updated_at`

type MaterialRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewMaterialRepository(db *sql.DB) *MaterialRepository {
	return &MaterialRepository{db: db, now: time.Now}
}

func (r *MaterialRepository) List(ctx context.Context, filter domain.MaterialFilter) ([]domain.Material, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("LOWER(category) = LOWER($%d)", len(args)))
	}
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	query := `SELECT ` + materialColumns + ` FROM materials`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limitOrDefault(filter.Limit), max(filter.Skip, 0))
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.query(ctx, query, args...)
}

func (r *MaterialRepository) Get(ctx context.Context, id int64) (domain.Material, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id)
	m, err := scanMaterial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Material{}, notFound("material", id)
	}
	if err != nil {
		return domain.Material{}, fmt.Errorf("get material: %w", err)
	}
	return m, nil
}

func (r *MaterialRepository) Create(ctx context.Context, m domain.Material) (domain.Material, error) {
	out, err := r.CreateBatch(ctx, []domain.Material{m})
	if err != nil {
		return domain.Material{}, err
	}
	return out[0], nil
}

// CreateBatch inserts all items in one transaction holding the materials
// advisory lock, so the BIGSERIAL ids of a batch form one contiguous range.
func (r *MaterialRepository) CreateBatch(ctx context.Context, items []domain.Material) ([]domain.Material, error) {
	for _, m := range items {
		if err := domain.ValidateMaterial(m); err != nil {
			return nil, err
		}
	}
	if len(items) == 0 {
		return []domain.Material{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin material batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, materialsLockKey); err != nil {
		return nil, fmt.Errorf("acquire materials lock: %w", err)
	}

	now := r.now().UTC()
	out := make([]domain.Material, 0, len(items))
	for _, m := range items {
		m.CreatedAt, m.UpdatedAt = now, now
		id, err := insertMaterial(ctx, tx, m)
		if err != nil {
			return nil, err
		}
		m.ID = id
		out = append(out, m)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit material batch: %w", err)
	}
	return out, nil
}

func insertMaterial(ctx context.Context, tx *sql.Tx, m domain.Material) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
INSERT INTO materials (name, quantity, unit, price, supplier, project_id, category, source_file, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id
`, m.Name, m.Quantity, m.Unit, m.Price, m.Supplier, m.ProjectID, m.Category, m.SourceFile, m.CreatedAt, m.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert material: %w", err)
	}
	return id, nil
}

func (r *MaterialRepository) Update(ctx context.Context, id int64, patch domain.MaterialPatch) (domain.Material, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Material{}, fmt.Errorf("begin material update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := scanMaterial(tx.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Material{}, notFound("material", id)
	}
	if err != nil {
		return domain.Material{}, fmt.Errorf("load material: %w", err)
	}
	updated, err := domain.ApplyMaterialPatch(current, patch)
	if err != nil {
		return domain.Material{}, err
	}
	updated.UpdatedAt = r.now().UTC()

	_, err = tx.ExecContext(ctx, `
UPDATE materials
SET name = $2, quantity = $3, unit = $4, price = $5, supplier = $6, project_id = $7, category = $8, source_file = $9, updated_at = $10
WHERE id = $1
`, id, updated.Name, updated.Quantity, updated.Unit, updated.Price, updated.Supplier, updated.ProjectID,
		updated.Category, updated.SourceFile, updated.UpdatedAt)
	if err != nil {
		return domain.Material{}, fmt.Errorf("update material: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Material{}, fmt.Errorf("commit material update: %w", err)
	}
	return updated, nil
}

func (r *MaterialRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete material rows affected: %w", err)
	}
	if rows == 0 {
		return notFound("material", id)
	}
	return nil
}

func (r *MaterialRepository) Search(ctx context.Context, query string, limit int) ([]domain.Material, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	return r.query(ctx, `
SELECT `+materialColumns+`
FROM materials
WHERE name ILIKE $1 OR category ILIKE $1 OR COALESCE(supplier, '') ILIKE $1
ORDER BY id
LIMIT $2
`, pattern, limitOrDefault(limit))
}

func (r *MaterialRepository) Summary(ctx context.Context) (domain.MaterialSummary, error) {
	summary := domain.MaterialSummary{
		ByCategory:      make(map[string]int),
		ValueByCategory: make(map[string]float64),
		Suppliers:       make([]string, 0),
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT COALESCE(NULLIF(category, ''), 'general') AS cat, COUNT(*), COALESCE(ROUND(SUM(quantity::numeric * price::numeric), 2), 0)::float8
FROM materials
GROUP BY cat
ORDER BY cat
`)
	if err != nil {
		return summary, fmt.Errorf("summarize materials: %w", err)
	}
	defer rows.Close()
	total := 0.0
	for rows.Next() {
		var (
			category string
			count    int
			value    float64
		)
		if err := rows.Scan(&category, &count, &value); err != nil {
			return summary, fmt.Errorf("scan material summary: %w", err)
		}
		summary.ByCategory[category] = count
		summary.ValueByCategory[category] = value
		summary.TotalMaterials += count
		total = money.Sum(total, value)
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("iterate material summary: %w", err)
	}

	suppliers, err := r.db.QueryContext(ctx, `
SELECT DISTINCT supplier FROM materials WHERE supplier IS NOT NULL AND supplier <> '' ORDER BY supplier
`)
	if err != nil {
		return summary, fmt.Errorf("list suppliers: %w", err)
	}
	defer suppliers.Close()
	for suppliers.Next() {
		var s string
		if err := suppliers.Scan(&s); err != nil {
			return summary, fmt.Errorf("scan supplier: %w", err)
		}
		summary.Suppliers = append(summary.Suppliers, s)
	}
	if err := suppliers.Err(); err != nil {
		return summary, fmt.Errorf("iterate suppliers: %w", err)
	}

	summary.TotalValue = money.Round2(total)
	return summary, nil
}

func (r *MaterialRepository) CountByProject(ctx context.Context) (map[int64]int, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT project_id, COUNT(*) FROM materials WHERE project_id IS NOT NULL GROUP BY project_id
`)
	if err != nil {
		return nil, fmt.Errorf("count materials by project: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]int)
	for rows.Next() {
		var (
			id    int64
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan project count: %w", err)
		}
		out[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project counts: %w", err)
	}
	return out, nil
}

func (r *MaterialRepository) query(ctx context.Context, query string, args ...any) ([]domain.Material, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Material, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materials: %w", err)
	}
	return out, nil
}

func scanMaterial(row scanner) (domain.Material, error) {
	var m domain.Material
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Quantity,
		&m.Unit,
		&m.Price,
		&m.Supplier,
		&m.ProjectID,
		&m.Category,
		&m.SourceFile,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}
