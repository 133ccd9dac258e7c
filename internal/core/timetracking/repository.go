package timetracking

import (
	"context"
	"time"

	"github.com/ogurasousui/ogs-worktime/internal/core/staff"
	"github.com/ogurasousui/ogs-worktime/internal/core/worktime"
)

// Repository は勤怠記録の永続化の抽象です。
// 見つからない場合はそれぞれ ErrSessionNotFound / ErrBreakNotFound / ErrAbsenceNotFound を返します。
type Repository interface {
	CreateSession(ctx context.Context, s *worktime.WorkSession) (*worktime.WorkSession, error)
	UpdateSession(ctx context.Context, s *worktime.WorkSession) (*worktime.WorkSession, error)
	// CloseOpenSession はまだ終了していないセッションだけを終了します。終了済みなら ErrSessionNotFound です。
	CloseOpenSession(ctx context.Context, s *worktime.WorkSession) (*worktime.WorkSession, error)
	FindSessionByID(ctx context.Context, id string) (*worktime.WorkSession, error)
	FindSessionByStaffAndDate(ctx context.Context, staffID, date string) (*worktime.WorkSession, error)
	FindOpenSessionByStaff(ctx context.Context, staffID string) (*worktime.WorkSession, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]*worktime.WorkSession, error)
	ListOpenSessionsBefore(ctx context.Context, date string) ([]*worktime.WorkSession, error)

	CreateBreak(ctx context.Context, b *worktime.WorkSessionBreak) (*worktime.WorkSessionBreak, error)
	UpdateBreak(ctx context.Context, b *worktime.WorkSessionBreak) (*worktime.WorkSessionBreak, error)
	FindActiveBreak(ctx context.Context, sessionID string) (*worktime.WorkSessionBreak, error)
	ListBreaks(ctx context.Context, sessionIDs []string) (map[string][]worktime.WorkSessionBreak, error)

	CreateAbsence(ctx context.Context, a *worktime.StaffAbsence) (*worktime.StaffAbsence, error)
	UpdateAbsence(ctx context.Context, a *worktime.StaffAbsence) (*worktime.StaffAbsence, error)
	DeleteAbsence(ctx context.Context, id string) error
	FindAbsenceByID(ctx context.Context, id string) (*worktime.StaffAbsence, error)
	ListAbsences(ctx context.Context, filter AbsenceFilter) ([]*worktime.StaffAbsence, error)
}

// SessionFilter はセッション一覧のフィルタです。From / To は YYYY-MM-DD で両端を含みます。
type SessionFilter struct {
	StaffID string
	From    string
	To      string
}

// AbsenceFilter は欠勤一覧のフィルタです。期間と重なる欠勤を返します。
type AbsenceFilter struct {
	StaffID string
	From    string
	To      string
	Status  *worktime.AbsenceStatus
}

// AuditLog はセッション修正の監査ログです。件数は WorkSessionHistory.EditCount になります。
type AuditLog interface {
	Record(ctx context.Context, edit *SessionEdit) error
	CountBySessions(ctx context.Context, sessionIDs []string) (map[string]int, error)
	ListBySession(ctx context.Context, sessionID string) ([]*SessionEdit, error)
}

// SessionEdit は 1 回分の修正記録です。
type SessionEdit struct {
	ID        string
	SessionID string
	StaffID   string
	EditedBy  string
	Reason    string
	Changes   []FieldChange
	EditedAt  time.Time
}

// FieldChange は修正された項目の前後の値です。
type FieldChange struct {
	Field  string
	Before string
	After  string
}

// StaffDirectory は打刻可能なスタッフを照会します。
type StaffDirectory interface {
	LookupActive(ctx context.Context, id string) (*staff.Staff, error)
}

type noopAuditLog struct{}

func (noopAuditLog) Record(context.Context, *SessionEdit) error {
	return nil
}

func (noopAuditLog) CountBySessions(context.Context, []string) (map[string]int, error) {
	return map[string]int{}, nil
}

func (noopAuditLog) ListBySession(context.Context, string) ([]*SessionEdit, error) {
	return nil, nil
}
