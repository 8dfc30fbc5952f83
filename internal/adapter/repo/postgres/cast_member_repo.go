package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therealityreport/socializer/internal/domain"
)

// CastMemberRepo reads the admin-owned cast catalog; the pipeline never
// writes to this table.
type CastMemberRepo struct{ Pool PgxPool }

// NewCastMemberRepo constructs a CastMemberRepo.
func NewCastMemberRepo(p PgxPool) *CastMemberRepo { return &CastMemberRepo{Pool: p} }

var _ domain.CastMemberRepository = (*CastMemberRepo)(nil)

const castMemberColumns = `id, slug, full_name, display_name, show, aliases, is_active`

// ListActive loads every cast member flagged active, used by the entity
// linker to build its alias index.
func (r *CastMemberRepo) ListActive(ctx domain.Context) ([]domain.CastMember, error) {
	tracer := otel.Tracer("repo.cast_members")
	ctx, span := tracer.Start(ctx, "cast_members.ListActive")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "cast_members"),
	)

	q := `SELECT ` + castMemberColumns + ` FROM cast_members WHERE is_active = true ORDER BY slug`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=castMember.listActive: %w", err)
	}
	defer rows.Close()

	var out []domain.CastMember
	for rows.Next() {
		var cm domain.CastMember
		if err := rows.Scan(&cm.ID, &cm.Slug, &cm.FullName, &cm.DisplayName, &cm.Show, &cm.Aliases, &cm.IsActive); err != nil {
			return nil, fmt.Errorf("op=castMember.listActive scan: %w", err)
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}

// Get loads a single cast member by id.
func (r *CastMemberRepo) Get(ctx domain.Context, id string) (domain.CastMember, error) {
	tracer := otel.Tracer("repo.cast_members")
	ctx, span := tracer.Start(ctx, "cast_members.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "cast_members"),
	)

	q := `SELECT ` + castMemberColumns + ` FROM cast_members WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var cm domain.CastMember
	if err := row.Scan(&cm.ID, &cm.Slug, &cm.FullName, &cm.DisplayName, &cm.Show, &cm.Aliases, &cm.IsActive); err != nil {
		if err == pgx.ErrNoRows {
			return domain.CastMember{}, fmt.Errorf("op=castMember.get id=%s: %w", id, domain.ErrNotFound)
		}
		return domain.CastMember{}, fmt.Errorf("op=castMember.get id=%s: %w", id, err)
	}
	return cm, nil
}
