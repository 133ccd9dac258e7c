package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/ogs-worktime/internal/core/staff"
	pgdb "github.com/ogurasousui/ogs-worktime/internal/platform/db/postgres"
)

const staffColumns = `id, first_name, last_name, email, role, status, created_at, updated_at`

// StaffRepository は PostgreSQL を利用したスタッフ永続化の実装です。
type StaffRepository struct {
	pool pgdb.Queryer
}

// NewStaffRepository は StaffRepository を生成します。
func NewStaffRepository(pool pgdb.Queryer) *StaffRepository {
	return &StaffRepository{pool: pool}
}

// Create はスタッフを新規作成します。
func (r *StaffRepository) Create(ctx context.Context, s *staff.Staff) (*staff.Staff, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO staff (first_name, last_name, email, role, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+staffColumns,
		s.FirstName,
		s.LastName,
		nullableString(s.Email),
		string(s.Role),
		string(s.Status),
		s.CreatedAt,
		s.UpdatedAt,
	)

	created, err := scanStaff(row)
	if err != nil {
		return nil, translateStaffPgError(err)
	}
	return created, nil
}

// Update はスタッフ情報を更新します。
func (r *StaffRepository) Update(ctx context.Context, s *staff.Staff) (*staff.Staff, error) {
	id, ok := parseID(s.ID)
	if !ok {
		return nil, staff.ErrStaffNotFound
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE staff
           SET first_name = $1,
               last_name = $2,
               email = $3,
               role = $4,
               status = $5,
               updated_at = $6
         WHERE id = $7
        RETURNING `+staffColumns,
		s.FirstName,
		s.LastName,
		nullableString(s.Email),
		string(s.Role),
		string(s.Status),
		s.UpdatedAt,
		id,
	)

	updated, err := scanStaff(row)
	if err != nil {
		return nil, translateStaffPgError(err)
	}
	return updated, nil
}

// Delete はスタッフを削除します。勤怠記録が残っている場合は削除できません。
func (r *StaffRepository) Delete(ctx context.Context, rawID string) error {
	id, ok := parseID(rawID)
	if !ok {
		return staff.ErrStaffNotFound
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return translateStaffPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return staff.ErrStaffNotFound
	}
	return nil
}

// FindByID は ID でスタッフを取得します。
func (r *StaffRepository) FindByID(ctx context.Context, rawID string) (*staff.Staff, error) {
	id, ok := parseID(rawID)
	if !ok {
		return nil, staff.ErrStaffNotFound
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id)

	found, err := scanStaff(row)
	if err != nil {
		return nil, translateStaffPgError(err)
	}
	return found, nil
}

// FindByEmail はメールアドレスでスタッフを取得します。
func (r *StaffRepository) FindByEmail(ctx context.Context, email string) (*staff.Staff, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE email = $1 LIMIT 1`, email)

	found, err := scanStaff(row)
	if err != nil {
		return nil, translateStaffPgError(err)
	}
	return found, nil
}

// List はスタッフの一覧を姓・名の順で取得します。
func (r *StaffRepository) List(ctx context.Context, filter staff.ListStaffFilter) ([]*staff.Staff, string, error) {
	if filter.Limit <= 0 {
		return nil, "", staff.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", staff.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 2)

	if filter.Status != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "status = "+placeholder)
		args = append(args, string(*filter.Status))
	}

	if filter.Role != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "role = "+placeholder)
		args = append(args, string(*filter.Role))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, limitWithBuffer)
	offsetPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Offset)

	query := `
        SELECT ` + staffColumns + `
          FROM staff` + whereClause + `
         ORDER BY last_name, first_name, id
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateStaffPgError(err)
	}
	defer rows.Close()

	members := make([]*staff.Staff, 0, filter.Limit)
	for rows.Next() {
		member, err := scanStaff(rows)
		if err != nil {
			return nil, "", translateStaffPgError(err)
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateStaffPgError(err)
	}

	var nextToken string
	if len(members) == limitWithBuffer {
		members = members[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return members, nextToken, nil
}

func scanStaff(row pgx.Row) (*staff.Staff, error) {
	var (
		id        int64
		firstName string
		lastName  string
		email     sql.NullString
		role      string
		status    string
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&id, &firstName, &lastName, &email, &role, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, staff.ErrStaffNotFound
		}
		return nil, err
	}

	var emailPtr *string
	if email.Valid {
		v := email.String
		emailPtr = &v
	}

	return &staff.Staff{
		ID:        formatID(id),
		FirstName: firstName,
		LastName:  lastName,
		Email:     emailPtr,
		Role:      staff.Role(role),
		Status:    staff.Status(status),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func translateStaffPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return staff.ErrStaffNotFound
	}

	if pgErr, ok := asPgError(err); ok {
		switch pgErr.Code {
		case uniqueViolationCode:
			return staff.ErrEmailAlreadyExists
		case foreignKeyViolationCode:
			return staff.ErrStaffInUse
		case checkViolationCode:
			switch pgErr.ConstraintName {
			case "staff_role_check":
				return staff.ErrInvalidRole
			case "staff_status_check":
				return staff.ErrInvalidStatus
			}
		}
	}

	return err
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
