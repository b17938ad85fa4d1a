package member

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/janasewa/membership-go/internal/domain"
	"github.com/janasewa/membership-go/internal/service/database"
	"github.com/janasewa/membership-go/pkg/errors"
)

// Source: the authoritative record source as seen by the lookup cache.
// Summary* methods read the precomputed fast projection; Joined* methods
// read the live multi-join fallback view. Summary methods report the missing
// fast table as a SourceError with Unavailable set.
type Source interface {
	SummaryByID(ctx context.Context, id string) (*domain.MemberRecord, error)
	SummaryByMemberNo(ctx context.Context, memberNo string) (*domain.MemberRecord, error)
	SummariesByMemberNo(ctx context.Context, memberNos []string) ([]*domain.MemberRecord, error)
	JoinedByID(ctx context.Context, id string) (*domain.MemberRecord, error)
	JoinedByMemberNo(ctx context.Context, memberNo string) (*domain.MemberRecord, error)
	RecentActive(ctx context.Context, limit int) ([]*domain.MemberRecord, error)
}

const summaryColumns = `id, member_no, first_name, last_name, phone, email,
	       province, municipality, ward, membership_type, joined_at, expires_at`

const joinedColumns = `m.id, m.member_no, m.first_name, m.last_name, m.phone, m.email,
	       p.name, mu.name, w.name, t.name, m.joined_at, m.expires_at`

const joinedFrom = `
	FROM members m
	LEFT JOIN provinces p ON p.id = m.province_id
	LEFT JOIN municipalities mu ON mu.id = m.municipality_id
	LEFT JOIN wards w ON w.id = m.ward_id
	LEFT JOIN membership_types t ON t.id = m.membership_type_id`

// Model: GORM model mapped to the members base table. Used only by the write
// helpers; all reads go through the projections.
type Model struct {
	ID        string     `gorm:"primaryKey;column:id"`
	MemberNo  *string    `gorm:"column:member_no"`
	FirstName string     `gorm:"column:first_name"`
	LastName  string     `gorm:"column:last_name"`
	Phone     *string    `gorm:"column:phone"`
	Email     *string    `gorm:"column:email"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
}

// TableName: returns the mapped table name.
func (Model) TableName() string {
	return "members"
}

// Repository: database access for member projections and base-table writes.
type Repository struct {
	db     *sql.DB
	gormDB *gorm.DB
	logger *slog.Logger
}

var _ Source = (*Repository)(nil)

// NewRepository: creates a member repository.
func NewRepository(postgres *database.PostgresService, logger *slog.Logger) *Repository {
	return &Repository{
		db:     postgres.GetDB(),
		gormDB: postgres.GetGormDB(),
		logger: logger,
	}
}

// SummaryByID: looks up one member in the fast summary projection.
func (r *Repository) SummaryByID(ctx context.Context, id string) (*domain.MemberRecord, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM member_summaries
		WHERE id = $1
		LIMIT 1
	`
	return r.queryOne(ctx, "summary_by_id", query, id)
}

// SummaryByMemberNo: looks up one member in the fast summary projection by
// membership number.
func (r *Repository) SummaryByMemberNo(ctx context.Context, memberNo string) (*domain.MemberRecord, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM member_summaries
		WHERE member_no = $1
		LIMIT 1
	`
	return r.queryOne(ctx, "summary_by_member_no", query, memberNo)
}

// SummariesByMemberNo: batched fast-projection lookup for many membership
// numbers. Missing numbers are simply absent from the result.
func (r *Repository) SummariesByMemberNo(ctx context.Context, memberNos []string) ([]*domain.MemberRecord, error) {
	if len(memberNos) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + summaryColumns + `
		FROM member_summaries
		WHERE member_no = ANY($1)
	`
	return r.queryMany(ctx, "summaries_by_member_no", query, pq.Array(memberNos))
}

// JoinedByID: slow fallback lookup joining the base membership tables live.
func (r *Repository) JoinedByID(ctx context.Context, id string) (*domain.MemberRecord, error) {
	query := `
		SELECT ` + joinedColumns + joinedFrom + `
		WHERE m.id = $1
		LIMIT 1
	`
	return r.queryOne(ctx, "joined_by_id", query, id)
}

// JoinedByMemberNo: slow fallback lookup by membership number.
func (r *Repository) JoinedByMemberNo(ctx context.Context, memberNo string) (*domain.MemberRecord, error) {
	query := `
		SELECT ` + joinedColumns + joinedFrom + `
		WHERE m.member_no = $1
		LIMIT 1
	`
	return r.queryOne(ctx, "joined_by_member_no", query, memberNo)
}

// RecentActive: most recently updated active members from the fast
// projection, used by cache warm-up.
func (r *Repository) RecentActive(ctx context.Context, limit int) ([]*domain.MemberRecord, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM member_summaries
		WHERE status = 'active'
		ORDER BY updated_at DESC
		LIMIT $1
	`
	return r.queryMany(ctx, "recent_active", query, limit)
}

func (r *Repository) queryOne(ctx context.Context, op, query string, args ...any) (*domain.MemberRecord, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	record, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapSourceError(op, err)
	}
	return record, nil
}

func (r *Repository) queryMany(ctx context.Context, op, query string, args ...any) ([]*domain.MemberRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapSourceError(op, err)
	}
	defer rows.Close()

	var records []*domain.MemberRecord
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			r.logger.Warn("Failed to scan member row", slog.String("op", op), slog.Any("error", err))
			continue
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapSourceError(op, err)
	}

	return records, nil
}

// scanRecord: converts one projection row into a domain record. Both
// projections return the same column shape.
func scanRecord(scan func(dest ...any) error) (*domain.MemberRecord, error) {
	var (
		id             string
		memberNo       sql.NullString
		firstName      string
		lastName       string
		phone          sql.NullString
		email          sql.NullString
		province       sql.NullString
		municipality   sql.NullString
		ward           sql.NullString
		membershipType sql.NullString
		joinedAt       sql.NullTime
		expiresAt      sql.NullTime
	)

	if err := scan(&id, &memberNo, &firstName, &lastName, &phone, &email,
		&province, &municipality, &ward, &membershipType, &joinedAt, &expiresAt); err != nil {
		return nil, err
	}

	record := &domain.MemberRecord{
		ID:             id,
		MemberNo:       memberNo.String,
		FirstName:      firstName,
		LastName:       lastName,
		Phone:          phone.String,
		Email:          email.String,
		Province:       province.String,
		Municipality:   municipality.String,
		Ward:           ward.String,
		MembershipType: membershipType.String,
	}
	if joinedAt.Valid {
		t := joinedAt.Time
		record.JoinedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		record.ExpiresAt = &t
	}

	return record, nil
}

// wrapSourceError: tags the undefined-relation condition so callers can
// fall back to the joined view; everything else propagates as a plain
// source failure.
func wrapSourceError(op string, err error) error {
	if isUndefinedTable(err) {
		return errors.NewSourceUnavailable(op, err)
	}
	return errors.NewSourceError(op, fmt.Errorf("query failed: %w", err))
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == "42P01"
}

// UpdateContact: updates contact fields on the base table. Callers must
// invalidate the lookup cache for the member afterwards.
func (r *Repository) UpdateContact(ctx context.Context, id, phone, email string) error {
	result := r.gormDB.WithContext(ctx).
		Model(&Model{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"phone":      phone,
			"email":      email,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update contact: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("member", id)
	}

	return nil
}

// TouchRenewal: extends a member's expiry date on the base table. Callers
// must invalidate the lookup cache for the member afterwards.
func (r *Repository) TouchRenewal(ctx context.Context, id string, expiresAt time.Time) error {
	result := r.gormDB.WithContext(ctx).
		Model(&Model{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"expires_at": expiresAt,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update expiry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("member", id)
	}

	return nil
}
