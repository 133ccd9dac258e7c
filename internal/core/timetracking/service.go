package timetracking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/ogs-worktime/internal/core/staff"
	"github.com/ogurasousui/ogs-worktime/internal/core/worktime"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const defaultAutoCheckOutAt = 20 * time.Hour

// Settings は勤怠ユースケースの運用設定です。
type Settings struct {
	// Location は勤務日の区切りに使うタイムゾーンです。nil の場合は UTC です。
	Location *time.Location
	// AutoCheckOutAt は自動チェックアウト時刻 (0 時からの経過時間) です。
	AutoCheckOutAt time.Duration
	Policy         worktime.Policy
}

// Service は勤怠打刻・履歴・欠勤のユースケースをまとめます。
type Service struct {
	repo           Repository
	staff          StaffDirectory
	audit          AuditLog
	ledger         *worktime.Ledger
	clock          Clock
	tx             TransactionManager
	loc            *time.Location
	autoCheckOutAt time.Duration
}

// UseCase は勤怠ユースケースの公開インターフェースです。
type UseCase interface {
	CheckIn(ctx context.Context, in CheckInInput) (*worktime.WorkSession, error)
	StartBreak(ctx context.Context, in StaffInput) (*worktime.WorkSessionBreak, error)
	EndBreak(ctx context.Context, in StaffInput) (*worktime.WorkSessionBreak, error)
	CheckOut(ctx context.Context, in StaffInput) (*SessionView, error)
	CorrectSession(ctx context.Context, in CorrectSessionInput) (*SessionView, error)
	ListCorrections(ctx context.Context, sessionID string) ([]*SessionEdit, error)
	GetSession(ctx context.Context, id string) (*SessionView, error)
	GetCurrentSession(ctx context.Context, staffID string) (*SessionView, error)
	ListHistory(ctx context.Context, in ListHistoryInput) ([]SessionView, error)
	GetWeekSummary(ctx context.Context, in WeekSummaryInput) (*WeekSummary, error)
	CreateAbsence(ctx context.Context, in CreateAbsenceInput) (*worktime.StaffAbsence, error)
	ApproveAbsence(ctx context.Context, in DecideAbsenceInput) (*worktime.StaffAbsence, error)
	RejectAbsence(ctx context.Context, in DecideAbsenceInput) (*worktime.StaffAbsence, error)
	ListAbsences(ctx context.Context, in ListAbsencesInput) ([]*worktime.StaffAbsence, error)
	DeleteAbsence(ctx context.Context, id string) error
	AutoCheckOut(ctx context.Context) (int, error)
}

var _ UseCase = (*Service)(nil)

// NewService は Service を生成します。audit / clock / tx は nil の場合に既定実装を使います。
func NewService(repo Repository, directory StaffDirectory, audit AuditLog, clock Clock, tx TransactionManager, settings Settings) *Service {
	if audit == nil {
		audit = noopAuditLog{}
	}
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	loc := settings.Location
	if loc == nil {
		loc = time.UTC
	}
	autoCheckOutAt := settings.AutoCheckOutAt
	if autoCheckOutAt <= 0 || autoCheckOutAt >= 24*time.Hour {
		autoCheckOutAt = defaultAutoCheckOutAt
	}

	return &Service{
		repo:           repo,
		staff:          directory,
		audit:          audit,
		ledger:         worktime.NewLedger(settings.Policy),
		clock:          clock,
		tx:             tx,
		loc:            loc,
		autoCheckOutAt: autoCheckOutAt,
	}
}

// CheckInInput はチェックイン時の入力です。
type CheckInInput struct {
	StaffID string
	Status  worktime.Status
	Notes   string
	ActorID string
}

// StaffInput はスタッフ単位の打刻操作の入力です。
type StaffInput struct {
	StaffID string
	ActorID string
}

// CorrectSessionInput は管理者による勤怠修正の入力です。
type CorrectSessionInput struct {
	ID              string
	ActorID         string
	Reason          string
	CheckInTime     *time.Time
	CheckOutTime    *time.Time
	CheckOutTimeSet bool
	BreakMinutes    *int
	Status          *worktime.Status
	Notes           *string
}

// CheckIn は当日のセッションを開始します。
func (s *Service) CheckIn(ctx context.Context, in CheckInInput) (*worktime.WorkSession, error) {
	staffID, err := normalizeID(in.StaffID, ErrInvalidStaffID)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = worktime.StatusPresent
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	if err := s.ensureStaffAvailable(ctx, staffID); err != nil {
		return nil, err
	}

	var created *worktime.WorkSession
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindOpenSessionByStaff(txCtx, staffID); err == nil {
			return ErrAlreadyCheckedIn
		} else if !errors.Is(err, ErrSessionNotFound) {
			return err
		}

		now := s.clock.Now()
		date := s.dateOf(now)
		if _, err := s.repo.FindSessionByStaffAndDate(txCtx, staffID, date); err == nil {
			return ErrAlreadyCheckedIn
		} else if !errors.Is(err, ErrSessionNotFound) {
			return err
		}

		result, err := s.repo.CreateSession(txCtx, &worktime.WorkSession{
			StaffID:     staffID,
			Date:        date,
			Status:      status,
			CheckInTime: now,
			Notes:       strings.TrimSpace(in.Notes),
			CreatedBy:   actorOrSelf(in.ActorID, staffID),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// StartBreak は勤務中のセッションで休憩を開始します。
func (s *Service) StartBreak(ctx context.Context, in StaffInput) (*worktime.WorkSessionBreak, error) {
	staffID, err := normalizeID(in.StaffID, ErrInvalidStaffID)
	if err != nil {
		return nil, err
	}

	var started *worktime.WorkSessionBreak
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		session, err := s.openSession(txCtx, staffID)
		if err != nil {
			return err
		}

		if _, err := s.repo.FindActiveBreak(txCtx, session.ID); err == nil {
			return ErrBreakAlreadyActive
		} else if !errors.Is(err, ErrBreakNotFound) {
			return err
		}

		result, err := s.repo.CreateBreak(txCtx, &worktime.WorkSessionBreak{
			SessionID: session.ID,
			StartedAt: s.clock.Now(),
		})
		if err != nil {
			return err
		}
		started = result
		return nil
	}); err != nil {
		return nil, err
	}

	return started, nil
}

// EndBreak は進行中の休憩を終了し、休憩分数をセッションに加算します。
func (s *Service) EndBreak(ctx context.Context, in StaffInput) (*worktime.WorkSessionBreak, error) {
	staffID, err := normalizeID(in.StaffID, ErrInvalidStaffID)
	if err != nil {
		return nil, err
	}

	var ended *worktime.WorkSessionBreak
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		session, err := s.openSession(txCtx, staffID)
		if err != nil {
			return err
		}

		active, err := s.repo.FindActiveBreak(txCtx, session.ID)
		if errors.Is(err, ErrBreakNotFound) {
			return ErrNoActiveBreak
		}
		if err != nil {
			return err
		}

		now := s.clock.Now()
		closed, err := s.closeBreak(txCtx, session, active, now)
		if err != nil {
			return err
		}

		session.UpdatedBy = optionalActor(in.ActorID, staffID)
		session.UpdatedAt = now
		if _, err := s.repo.UpdateSession(txCtx, session); err != nil {
			return err
		}

		ended = closed
		return nil
	}); err != nil {
		return nil, err
	}

	return ended, nil
}

// CheckOut はセッションを終了します。進行中の休憩があれば同時に終了します。
func (s *Service) CheckOut(ctx context.Context, in StaffInput) (*SessionView, error) {
	staffID, err := normalizeID(in.StaffID, ErrInvalidStaffID)
	if err != nil {
		return nil, err
	}

	var closed *worktime.WorkSession
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		session, err := s.openSession(txCtx, staffID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if now.Before(session.CheckInTime) {
			now = session.CheckInTime
		}

		if active, err := s.repo.FindActiveBreak(txCtx, session.ID); err == nil {
			if _, err := s.closeBreak(txCtx, session, active, now); err != nil {
				return err
			}
		} else if !errors.Is(err, ErrBreakNotFound) {
			return err
		}

		session.CheckOutTime = &now
		session.UpdatedBy = optionalActor(in.ActorID, staffID)
		session.UpdatedAt = now

		result, err := s.repo.UpdateSession(txCtx, session)
		if err != nil {
			return err
		}
		closed = result
		return nil
	}); err != nil {
		return nil, err
	}

	return s.view(ctx, closed)
}

// CorrectSession は管理者がセッションを修正し、監査ログに記録します。
func (s *Service) CorrectSession(ctx context.Context, in CorrectSessionInput) (*SessionView, error) {
	id, err := normalizeID(in.ID, ErrInvalidID)
	if err != nil {
		return nil, err
	}
	actor, err := normalizeID(in.ActorID, ErrInvalidActorID)
	if err != nil {
		return nil, err
	}
	if in.BreakMinutes != nil && *in.BreakMinutes < 0 {
		return nil, ErrInvalidBreakMinutes
	}
	if in.Status != nil && !in.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	var corrected *worktime.WorkSession
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		session, err := s.repo.FindSessionByID(txCtx, id)
		if err != nil {
			return err
		}

		var changes []FieldChange
		if in.CheckInTime != nil && !in.CheckInTime.Equal(session.CheckInTime) {
			checkIn := in.CheckInTime.UTC()
			changes = append(changes, FieldChange{Field: "checkInTime", Before: formatTime(&session.CheckInTime), After: formatTime(&checkIn)})
			session.CheckInTime = checkIn
			if date := s.dateOf(checkIn); date != session.Date {
				changes = append(changes, FieldChange{Field: "date", Before: session.Date, After: date})
				session.Date = date
			}
		}
		if in.CheckOutTimeSet && !sameTime(in.CheckOutTime, session.CheckOutTime) {
			var checkOut *time.Time
			if in.CheckOutTime != nil {
				t := in.CheckOutTime.UTC()
				checkOut = &t
			}
			changes = append(changes, FieldChange{Field: "checkOutTime", Before: formatTime(session.CheckOutTime), After: formatTime(checkOut)})
			session.CheckOutTime = checkOut
		}
		if in.BreakMinutes != nil && *in.BreakMinutes != session.BreakMinutes {
			changes = append(changes, FieldChange{Field: "breakMinutes", Before: strconv.Itoa(session.BreakMinutes), After: strconv.Itoa(*in.BreakMinutes)})
			session.BreakMinutes = *in.BreakMinutes
		}
		if in.Status != nil && *in.Status != session.Status {
			changes = append(changes, FieldChange{Field: "status", Before: string(session.Status), After: string(*in.Status)})
			session.Status = *in.Status
		}
		if in.Notes != nil && strings.TrimSpace(*in.Notes) != session.Notes {
			notes := strings.TrimSpace(*in.Notes)
			changes = append(changes, FieldChange{Field: "notes", Before: session.Notes, After: notes})
			session.Notes = notes
		}

		if len(changes) == 0 {
			corrected = session
			return nil
		}

		if session.CheckOutTime != nil && session.CheckOutTime.Before(session.CheckInTime) {
			return ErrInvalidTimeRange
		}

		now := s.clock.Now()
		session.UpdatedBy = &actor
		session.UpdatedAt = now

		result, err := s.repo.UpdateSession(txCtx, session)
		if err != nil {
			return err
		}
		// 監査ログに残せない修正はロールバックします。
		if err := s.audit.Record(txCtx, &SessionEdit{
			SessionID: result.ID,
			StaffID:   result.StaffID,
			EditedBy:  actor,
			Reason:    strings.TrimSpace(in.Reason),
			Changes:   changes,
			EditedAt:  now,
		}); err != nil {
			return fmt.Errorf("timetracking: record correction: %w", err)
		}
		corrected = result
		return nil
	}); err != nil {
		return nil, err
	}

	return s.view(ctx, corrected)
}

// ListCorrections はセッションの修正履歴を返します。
func (s *Service) ListCorrections(ctx context.Context, sessionID string) ([]*SessionEdit, error) {
	id, err := normalizeID(sessionID, ErrInvalidID)
	if err != nil {
		return nil, err
	}
	return s.audit.ListBySession(ctx, id)
}

// AutoCheckOut は前日以前に閉じられていないセッションを設定時刻で自動的に終了し、件数を返します。
func (s *Service) AutoCheckOut(ctx context.Context) (int, error) {
	today := s.dateOf(s.clock.Now())

	var open []*worktime.WorkSession
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		sessions, err := s.repo.ListOpenSessionsBefore(txCtx, today)
		if err != nil {
			return err
		}
		open = sessions
		return nil
	}); err != nil {
		return 0, err
	}

	closed := 0
	for _, listed := range open {
		done := false
		if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
			done = false
			// 一覧取得後に本人が退勤している場合があるため、トランザクション内で読み直します。
			session, err := s.repo.FindSessionByID(txCtx, listed.ID)
			if err != nil {
				if errors.Is(err, ErrSessionNotFound) {
					return nil
				}
				return err
			}
			if !session.IsOpen() {
				return nil
			}

			cutoff, err := s.autoCheckOutTime(session)
			if err != nil {
				return err
			}

			if active, err := s.repo.FindActiveBreak(txCtx, session.ID); err == nil {
				if _, err := s.closeBreak(txCtx, session, active, cutoff); err != nil {
					return err
				}
			} else if !errors.Is(err, ErrBreakNotFound) {
				return err
			}

			session.CheckOutTime = &cutoff
			session.AutoCheckedOut = true
			session.UpdatedAt = s.clock.Now()
			if _, err := s.repo.CloseOpenSession(txCtx, session); err != nil {
				if errors.Is(err, ErrSessionNotFound) {
					return nil
				}
				return err
			}
			done = true
			return nil
		}); err != nil {
			return closed, fmt.Errorf("timetracking: auto check-out session %s: %w", listed.ID, err)
		}
		if done {
			closed++
		}
	}

	return closed, nil
}

func (s *Service) autoCheckOutTime(session *worktime.WorkSession) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, session.Date, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("timetracking: session %s date %q: %w", session.ID, session.Date, ErrInvalidDate)
	}

	cutoff := day.Add(s.autoCheckOutAt).UTC()
	if cutoff.Before(session.CheckInTime) {
		cutoff = session.CheckInTime
	}
	return cutoff, nil
}

func (s *Service) openSession(ctx context.Context, staffID string) (*worktime.WorkSession, error) {
	session, err := s.repo.FindOpenSessionByStaff(ctx, staffID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	if _, err := s.repo.FindSessionByStaffAndDate(ctx, staffID, s.dateOf(s.clock.Now())); err == nil {
		return nil, ErrAlreadyCheckedOut
	} else if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	return nil, ErrNotCheckedIn
}

func (s *Service) closeBreak(ctx context.Context, session *worktime.WorkSession, active *worktime.WorkSessionBreak, end time.Time) (*worktime.WorkSessionBreak, error) {
	if end.Before(active.StartedAt) {
		end = active.StartedAt
	}
	active.EndedAt = &end
	active.DurationMinutes = worktime.BreakDuration(active.StartedAt, end)

	closed, err := s.repo.UpdateBreak(ctx, active)
	if err != nil {
		return nil, err
	}
	session.BreakMinutes += closed.DurationMinutes
	return closed, nil
}

func (s *Service) ensureStaffAvailable(ctx context.Context, staffID string) error {
	if s.staff == nil {
		return nil
	}
	if _, err := s.staff.LookupActive(ctx, staffID); err != nil {
		if errors.Is(err, staff.ErrStaffNotFound) || errors.Is(err, staff.ErrInvalidStatus) || errors.Is(err, staff.ErrInvalidID) {
			return fmt.Errorf("%w: %w", ErrStaffUnavailable, err)
		}
		return err
	}
	return nil
}

func (s *Service) dateOf(t time.Time) string {
	return t.In(s.loc).Format(time.DateOnly)
}

func (s *Service) parseDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), s.loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func normalizeID(raw string, invalid error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", invalid
	}
	return trimmed, nil
}

func actorOrSelf(actorID, staffID string) string {
	if trimmed := strings.TrimSpace(actorID); trimmed != "" {
		return trimmed
	}
	return staffID
}

func optionalActor(actorID, staffID string) *string {
	actor := actorOrSelf(actorID, staffID)
	return &actor
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
