package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/ogs-worktime/internal/core/timetracking"
	"github.com/ogurasousui/ogs-worktime/internal/core/worktime"
	pgdb "github.com/ogurasousui/ogs-worktime/internal/platform/db/postgres"
)

const (
	sessionColumns = `id, staff_id, date, status, check_in_time, check_out_time, break_minutes, auto_checked_out, notes, created_by, updated_by, created_at, updated_at`
	breakColumns   = `id, session_id, started_at, ended_at, duration_minutes`
	absenceColumns = `id, staff_id, date_start, date_end, absence_type, half_day, status, approved_by, approved_at, duration_days::float8 AS duration_days, note, created_at, updated_at`
)

// TimeTrackingRepository は勤怠セッション・休憩・欠勤を PostgreSQL に保存します。
// 行は列名をキーとするレコードとして読み出し、worktime の正規化を通して型に変換します。
type TimeTrackingRepository struct {
	pool pgdb.Queryer
}

// NewTimeTrackingRepository は TimeTrackingRepository を生成します。
func NewTimeTrackingRepository(pool pgdb.Queryer) *TimeTrackingRepository {
	return &TimeTrackingRepository{pool: pool}
}

// CreateSession はセッションを作成します。
func (r *TimeTrackingRepository) CreateSession(ctx context.Context, s *worktime.WorkSession) (*worktime.WorkSession, error) {
	staffID, ok := parseID(s.StaffID)
	if !ok {
		return nil, timetracking.ErrStaffUnavailable
	}
	date, err := parseDate(s.Date)
	if err != nil {
		return nil, err
	}

	return r.querySession(ctx, `
        INSERT INTO work_sessions (staff_id, date, status, check_in_time, check_out_time, break_minutes, auto_checked_out, notes, created_by, updated_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING `+sessionColumns,
		staffID,
		date,
		string(s.Status),
		s.CheckInTime,
		s.CheckOutTime,
		s.BreakMinutes,
		s.AutoCheckedOut,
		s.Notes,
		s.CreatedBy,
		nullableString(s.UpdatedBy),
		s.CreatedAt,
		s.UpdatedAt,
	)
}

// UpdateSession はセッションの可変項目を更新します。
func (r *TimeTrackingRepository) UpdateSession(ctx context.Context, s *worktime.WorkSession) (*worktime.WorkSession, error) {
	id, ok := parseID(s.ID)
	if !ok {
		return nil, timetracking.ErrSessionNotFound
	}
	date, err := parseDate(s.Date)
	if err != nil {
		return nil, err
	}

	return r.querySession(ctx, `
        UPDATE work_sessions
           SET date = $1,
               status = $2,
               check_in_time = $3,
               check_out_time = $4,
               break_minutes = $5,
               auto_checked_out = $6,
               notes = $7,
               updated_by = $8,
               updated_at = $9
         WHERE id = $10
        RETURNING `+sessionColumns,
		date,
		string(s.Status),
		s.CheckInTime,
		s.CheckOutTime,
		s.BreakMinutes,
		s.AutoCheckedOut,
		s.Notes,
		nullableString(s.UpdatedBy),
		s.UpdatedAt,
		id,
	)
}

// CloseOpenSession は check_out_time が未設定の場合に限りセッションを終了します。
func (r *TimeTrackingRepository) CloseOpenSession(ctx context.Context, s *worktime.WorkSession) (*worktime.WorkSession, error) {
	id, ok := parseID(s.ID)
	if !ok {
		return nil, timetracking.ErrSessionNotFound
	}

	return r.querySession(ctx, `
        UPDATE work_sessions
           SET check_out_time = $1,
               break_minutes = $2,
               auto_checked_out = $3,
               updated_by = $4,
               updated_at = $5
         WHERE id = $6 AND check_out_time IS NULL
        RETURNING `+sessionColumns,
		s.CheckOutTime,
		s.BreakMinutes,
		s.AutoCheckedOut,
		nullableString(s.UpdatedBy),
		s.UpdatedAt,
		id,
	)
}

// FindSessionByID は ID でセッションを取得します。
func (r *TimeTrackingRepository) FindSessionByID(ctx context.Context, rawID string) (*worktime.WorkSession, error) {
	id, ok := parseID(rawID)
	if !ok {
		return nil, timetracking.ErrSessionNotFound
	}
	return r.querySession(ctx, `SELECT `+sessionColumns+` FROM work_sessions WHERE id = $1`, id)
}

// FindSessionByStaffAndDate はスタッフと勤務日でセッションを取得します。
func (r *TimeTrackingRepository) FindSessionByStaffAndDate(ctx context.Context, rawStaffID, rawDate string) (*worktime.WorkSession, error) {
	staffID, ok := parseID(rawStaffID)
	if !ok {
		return nil, timetracking.ErrSessionNotFound
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	return r.querySession(ctx, `SELECT `+sessionColumns+` FROM work_sessions WHERE staff_id = $1 AND date = $2`, staffID, date)
}

// FindOpenSessionByStaff はチェックアウトしていない最新のセッションを取得します。
func (r *TimeTrackingRepository) FindOpenSessionByStaff(ctx context.Context, rawStaffID string) (*worktime.WorkSession, error) {
	staffID, ok := parseID(rawStaffID)
	if !ok {
		return nil, timetracking.ErrSessionNotFound
	}
	return r.querySession(ctx, `
        SELECT `+sessionColumns+`
          FROM work_sessions
         WHERE staff_id = $1 AND check_out_time IS NULL
         ORDER BY check_in_time DESC
         LIMIT 1`, staffID)
}

// ListSessions は期間内のセッションを勤務日順に取得します。
func (r *TimeTrackingRepository) ListSessions(ctx context.Context, filter timetracking.SessionFilter) ([]*worktime.WorkSession, error) {
	staffID, ok := parseID(filter.StaffID)
	if !ok {
		return []*worktime.WorkSession{}, nil
	}
	from, err := parseDate(filter.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(filter.To)
	if err != nil {
		return nil, err
	}

	return r.querySessions(ctx, `
        SELECT `+sessionColumns+`
          FROM work_sessions
         WHERE staff_id = $1 AND date BETWEEN $2 AND $3
         ORDER BY date, check_in_time, id`, staffID, from, to)
}

// ListOpenSessionsBefore は指定日より前の未終了セッションを取得します。
func (r *TimeTrackingRepository) ListOpenSessionsBefore(ctx context.Context, rawDate string) ([]*worktime.WorkSession, error) {
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	return r.querySessions(ctx, `
        SELECT `+sessionColumns+`
          FROM work_sessions
         WHERE check_out_time IS NULL AND date < $1
         ORDER BY date, id`, date)
}

// CreateBreak は休憩を開始します。
func (r *TimeTrackingRepository) CreateBreak(ctx context.Context, b *worktime.WorkSessionBreak) (*worktime.WorkSessionBreak, error) {
	sessionID, ok := parseID(b.SessionID)
	if !ok {
		return nil, timetracking.ErrSessionNotFound
	}
	return r.queryBreak(ctx, `
        INSERT INTO work_session_breaks (session_id, started_at, ended_at, duration_minutes)
        VALUES ($1, $2, $3, $4)
        RETURNING `+breakColumns,
		sessionID,
		b.StartedAt,
		b.EndedAt,
		b.DurationMinutes,
	)
}

// UpdateBreak は休憩の終了時刻と分数を更新します。
func (r *TimeTrackingRepository) UpdateBreak(ctx context.Context, b *worktime.WorkSessionBreak) (*worktime.WorkSessionBreak, error) {
	id, ok := parseID(b.ID)
	if !ok {
		return nil, timetracking.ErrBreakNotFound
	}
	return r.queryBreak(ctx, `
        UPDATE work_session_breaks
           SET ended_at = $1,
               duration_minutes = $2
         WHERE id = $3
        RETURNING `+breakColumns,
		b.EndedAt,
		b.DurationMinutes,
		id,
	)
}

// FindActiveBreak は進行中の休憩を取得します。
func (r *TimeTrackingRepository) FindActiveBreak(ctx context.Context, rawSessionID string) (*worktime.WorkSessionBreak, error) {
	sessionID, ok := parseID(rawSessionID)
	if !ok {
		return nil, timetracking.ErrBreakNotFound
	}
	return r.queryBreak(ctx, `
        SELECT `+breakColumns+`
          FROM work_session_breaks
         WHERE session_id = $1 AND ended_at IS NULL
         LIMIT 1`, sessionID)
}

// ListBreaks は複数セッションの休憩をセッション ID ごとに開始時刻順で返します。
func (r *TimeTrackingRepository) ListBreaks(ctx context.Context, sessionIDs []string) (map[string][]worktime.WorkSessionBreak, error) {
	result := make(map[string][]worktime.WorkSessionBreak, len(sessionIDs))
	ids := parseIDs(sessionIDs)
	if len(ids) == 0 {
		return result, nil
	}

	records, err := r.queryRecords(ctx, `
        SELECT `+breakColumns+`
          FROM work_session_breaks
         WHERE session_id = ANY($1)
         ORDER BY started_at, id`, ids)
	if err != nil {
		return nil, translateTimeTrackingPgError(err, timetracking.ErrBreakNotFound)
	}

	for _, rec := range records {
		b := worktime.NormalizeBreak(rec)
		result[b.SessionID] = append(result[b.SessionID], b)
	}
	return result, nil
}

// CreateAbsence は欠勤を登録します。
func (r *TimeTrackingRepository) CreateAbsence(ctx context.Context, a *worktime.StaffAbsence) (*worktime.StaffAbsence, error) {
	staffID, ok := parseID(a.StaffID)
	if !ok {
		return nil, timetracking.ErrStaffUnavailable
	}
	start, err := parseDate(a.DateStart)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(a.DateEnd)
	if err != nil {
		return nil, err
	}

	return r.queryAbsence(ctx, `
        INSERT INTO staff_absences (staff_id, date_start, date_end, absence_type, half_day, status, approved_by, approved_at, duration_days, note, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING `+absenceColumns,
		staffID,
		start,
		end,
		string(a.AbsenceType),
		a.HalfDay,
		string(a.Status),
		nullableString(a.ApprovedBy),
		a.ApprovedAt,
		a.DurationDays,
		a.Note,
		a.CreatedAt,
		a.UpdatedAt,
	)
}

// UpdateAbsence は欠勤の状態と承認情報を更新します。
func (r *TimeTrackingRepository) UpdateAbsence(ctx context.Context, a *worktime.StaffAbsence) (*worktime.StaffAbsence, error) {
	id, ok := parseID(a.ID)
	if !ok {
		return nil, timetracking.ErrAbsenceNotFound
	}
	return r.queryAbsence(ctx, `
        UPDATE staff_absences
           SET status = $1,
               approved_by = $2,
               approved_at = $3,
               note = $4,
               updated_at = $5
         WHERE id = $6
        RETURNING `+absenceColumns,
		string(a.Status),
		nullableString(a.ApprovedBy),
		a.ApprovedAt,
		a.Note,
		a.UpdatedAt,
		id,
	)
}

// DeleteAbsence は欠勤を削除します。
func (r *TimeTrackingRepository) DeleteAbsence(ctx context.Context, rawID string) error {
	id, ok := parseID(rawID)
	if !ok {
		return timetracking.ErrAbsenceNotFound
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM staff_absences WHERE id = $1`, id)
	if err != nil {
		return translateTimeTrackingPgError(err, timetracking.ErrAbsenceNotFound)
	}
	if tag.RowsAffected() == 0 {
		return timetracking.ErrAbsenceNotFound
	}
	return nil
}

// FindAbsenceByID は ID で欠勤を取得します。
func (r *TimeTrackingRepository) FindAbsenceByID(ctx context.Context, rawID string) (*worktime.StaffAbsence, error) {
	id, ok := parseID(rawID)
	if !ok {
		return nil, timetracking.ErrAbsenceNotFound
	}
	return r.queryAbsence(ctx, `SELECT `+absenceColumns+` FROM staff_absences WHERE id = $1`, id)
}

// ListAbsences は条件に合う欠勤を開始日順で取得します。期間は重なりで判定します。
func (r *TimeTrackingRepository) ListAbsences(ctx context.Context, filter timetracking.AbsenceFilter) ([]*worktime.StaffAbsence, error) {
	args := make([]any, 0, 4)
	conditions := make([]string, 0, 4)

	if strings.TrimSpace(filter.StaffID) != "" {
		staffID, ok := parseID(filter.StaffID)
		if !ok {
			return []*worktime.StaffAbsence{}, nil
		}
		args = append(args, staffID)
		conditions = append(conditions, "staff_id = $"+strconv.Itoa(len(args)))
	}

	if filter.From != "" {
		from, err := parseDate(filter.From)
		if err != nil {
			return nil, err
		}
		args = append(args, from)
		conditions = append(conditions, "date_end >= $"+strconv.Itoa(len(args)))
	}

	if filter.To != "" {
		to, err := parseDate(filter.To)
		if err != nil {
			return nil, err
		}
		args = append(args, to)
		conditions = append(conditions, "date_start <= $"+strconv.Itoa(len(args)))
	}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	records, err := r.queryRecords(ctx, `
        SELECT `+absenceColumns+`
          FROM staff_absences`+whereClause+`
         ORDER BY date_start, id`, args...)
	if err != nil {
		return nil, translateTimeTrackingPgError(err, timetracking.ErrAbsenceNotFound)
	}

	absences := make([]*worktime.StaffAbsence, 0, len(records))
	for _, rec := range records {
		a := worktime.NormalizeAbsence(rec)
		absences = append(absences, &a)
	}
	return absences, nil
}

func (r *TimeTrackingRepository) queryRecords(ctx context.Context, sql string, args ...any) ([]worktime.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	records := make([]worktime.Record, 0, len(maps))
	for _, m := range maps {
		records = append(records, worktime.Record(m))
	}
	return records, nil
}

func (r *TimeTrackingRepository) querySessions(ctx context.Context, sql string, args ...any) ([]*worktime.WorkSession, error) {
	records, err := r.queryRecords(ctx, sql, args...)
	if err != nil {
		return nil, translateTimeTrackingPgError(err, timetracking.ErrSessionNotFound)
	}

	sessions := make([]*worktime.WorkSession, 0, len(records))
	for _, rec := range records {
		s := worktime.Normalize(rec)
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

func (r *TimeTrackingRepository) querySession(ctx context.Context, sql string, args ...any) (*worktime.WorkSession, error) {
	sessions, err := r.querySessions(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, timetracking.ErrSessionNotFound
	}
	return sessions[0], nil
}

func (r *TimeTrackingRepository) queryBreak(ctx context.Context, sql string, args ...any) (*worktime.WorkSessionBreak, error) {
	records, err := r.queryRecords(ctx, sql, args...)
	if err != nil {
		return nil, translateTimeTrackingPgError(err, timetracking.ErrBreakNotFound)
	}
	if len(records) == 0 {
		return nil, timetracking.ErrBreakNotFound
	}
	b := worktime.NormalizeBreak(records[0])
	return &b, nil
}

func (r *TimeTrackingRepository) queryAbsence(ctx context.Context, sql string, args ...any) (*worktime.StaffAbsence, error) {
	records, err := r.queryRecords(ctx, sql, args...)
	if err != nil {
		return nil, translateTimeTrackingPgError(err, timetracking.ErrAbsenceNotFound)
	}
	if len(records) == 0 {
		return nil, timetracking.ErrAbsenceNotFound
	}
	a := worktime.NormalizeAbsence(records[0])
	return &a, nil
}

// parseDate は勤務日を DATE 列へ渡す値に変換します。
func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, timetracking.ErrInvalidDate
	}
	return t, nil
}

func translateTimeTrackingPgError(err, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}

	pgErr, ok := asPgError(err)
	if !ok {
		return err
	}

	switch pgErr.Code {
	case uniqueViolationCode:
		switch pgErr.ConstraintName {
		case "work_sessions_staff_id_date_key":
			return timetracking.ErrAlreadyCheckedIn
		case "work_session_breaks_active_idx":
			return timetracking.ErrBreakAlreadyActive
		}
	case foreignKeyViolationCode:
		switch pgErr.ConstraintName {
		case "work_sessions_staff_id_fkey", "staff_absences_staff_id_fkey":
			return timetracking.ErrStaffUnavailable
		case "work_session_breaks_session_id_fkey":
			return timetracking.ErrSessionNotFound
		}
	case checkViolationCode:
		switch pgErr.ConstraintName {
		case "work_sessions_time_range_check":
			return timetracking.ErrInvalidTimeRange
		case "work_sessions_break_minutes_check":
			return timetracking.ErrInvalidBreakMinutes
		case "work_sessions_status_check":
			return timetracking.ErrInvalidStatus
		case "staff_absences_date_range_check":
			return timetracking.ErrInvalidDateRange
		case "staff_absences_absence_type_check":
			return timetracking.ErrInvalidAbsenceType
		}
	}

	return err
}
