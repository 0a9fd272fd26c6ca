package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

const reportColumns = `id, name, project_id, type, status, error_message, region, regional_multiplier,
	regional_adjusted_cost, include_vat, materials, base_cost, vat_rate, vat_amount, total_cost, currency, created_at`

type ReportRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db, now: time.Now}
}

func (r *ReportRepository) List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limitOrDefault(filter.Limit), max(filter.Skip, 0))
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func (r *ReportRepository) Get(ctx context.Context, id int64) (domain.Report, error) {
	rep, err := scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Report{}, notFound("report", id)
	}
	if err != nil {
		return domain.Report{}, err
	}
	return rep, nil
}

func (r *ReportRepository) Create(ctx context.Context, rep domain.Report) (domain.Report, error) {
	if rep.Materials == nil {
		rep.Materials = []domain.LineItem{}
	}
	materialsJSON, err := json.Marshal(rep.Materials)
	if err != nil {
		return domain.Report{}, domain.WrapError(domain.ErrSerialization, "marshal report materials", err)
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = r.now().UTC()
	}

	err = r.db.QueryRowContext(ctx, `
INSERT INTO reports (
	name, project_id, type, status, error_message, region, regional_multiplier, regional_adjusted_cost,
	include_vat, materials, base_cost, vat_rate, vat_amount, total_cost, currency, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING id
`,
		rep.Name, rep.ProjectID, string(rep.Type), string(rep.Status), rep.Error, rep.Region, rep.RegionalMultiplier,
		rep.RegionalAdjustedCost, rep.IncludeVAT, materialsJSON, rep.BaseCost, rep.VATRate, rep.VATAmount,
		rep.TotalCost, rep.Currency, rep.CreatedAt,
	).Scan(&rep.ID)
	if err != nil {
		return domain.Report{}, fmt.Errorf("insert report: %w", err)
	}
	return rep, nil
}

func (r *ReportRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report rows affected: %w", err)
	}
	if rows == 0 {
		return notFound("report", id)
	}
	return nil
}

func scanReport(row scanner) (domain.Report, error) {
	var (
		rep          domain.Report
		reportType   string
		status       string
		materialsRaw []byte
	)
	err := row.Scan(
		&rep.ID,
		&rep.Name,
		&rep.ProjectID,
		&reportType,
		&status,
		&rep.Error,
		&rep.Region,
		&rep.RegionalMultiplier,
		&rep.RegionalAdjustedCost,
		&rep.IncludeVAT,
		&materialsRaw,
		&rep.BaseCost,
		&rep.VATRate,
		&rep.VATAmount,
		&rep.TotalCost,
		&rep.Currency,
		&rep.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rep, err
		}
		return rep, fmt.Errorf("scan report: %w", err)
	}
	if err := json.Unmarshal(materialsRaw, &rep.Materials); err != nil {
		return rep, domain.WrapError(domain.ErrSerialization, "unmarshal report materials", err)
	}
	rep.Type = domain.ReportType(reportType)
	rep.Status = domain.ReportStatus(status)
	return rep, nil
}
