package timetracking

import (
	"context"
	"strings"
	"time"

	"github.com/ogurasousui/ogs-worktime/internal/core/worktime"
)

// CreateAbsenceInput は欠勤登録の入力です。
type CreateAbsenceInput struct {
	StaffID     string
	DateStart   string
	DateEnd     string
	AbsenceType worktime.AbsenceType
	HalfDay     bool
	Note        string
}

// DecideAbsenceInput は欠勤の承認・却下の入力です。
type DecideAbsenceInput struct {
	ID      string
	ActorID string
}

// ListAbsencesInput は欠勤一覧の入力です。期間は省略できます。
type ListAbsencesInput struct {
	StaffID string
	From    string
	To      string
	Status  *worktime.AbsenceStatus
}

// CreateAbsence は欠勤を申請状態で登録します。
func (s *Service) CreateAbsence(ctx context.Context, in CreateAbsenceInput) (*worktime.StaffAbsence, error) {
	staffID, err := normalizeID(in.StaffID, ErrInvalidStaffID)
	if err != nil {
		return nil, err
	}
	if !in.AbsenceType.IsValid() {
		return nil, ErrInvalidAbsenceType
	}

	start, err := s.parseDate(in.DateStart)
	if err != nil {
		return nil, err
	}
	end := start
	if strings.TrimSpace(in.DateEnd) != "" {
		if end, err = s.parseDate(in.DateEnd); err != nil {
			return nil, err
		}
	}
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	if in.HalfDay && !end.Equal(start) {
		return nil, ErrInvalidHalfDay
	}

	if err := s.ensureStaffAvailable(ctx, staffID); err != nil {
		return nil, err
	}

	dateStart := start.Format(time.DateOnly)
	dateEnd := end.Format(time.DateOnly)

	var created *worktime.StaffAbsence
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.ListAbsences(txCtx, AbsenceFilter{StaffID: staffID, From: dateStart, To: dateEnd})
		if err != nil {
			return err
		}
		for _, a := range existing {
			if a.Status != worktime.AbsenceStatusRejected {
				return ErrAbsenceOverlap
			}
		}

		now := s.clock.Now()
		result, err := s.repo.CreateAbsence(txCtx, &worktime.StaffAbsence{
			StaffID:      staffID,
			DateStart:    dateStart,
			DateEnd:      dateEnd,
			AbsenceType:  in.AbsenceType,
			HalfDay:      in.HalfDay,
			Status:       worktime.AbsenceStatusPending,
			DurationDays: absenceDays(start, end, in.HalfDay),
			Note:         strings.TrimSpace(in.Note),
			CreatedAt:    now,
			UpdatedAt:    now,
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

// ApproveAbsence は申請中の欠勤を承認します。
func (s *Service) ApproveAbsence(ctx context.Context, in DecideAbsenceInput) (*worktime.StaffAbsence, error) {
	return s.decideAbsence(ctx, in, worktime.AbsenceStatusApproved)
}

// RejectAbsence は申請中の欠勤を却下します。
func (s *Service) RejectAbsence(ctx context.Context, in DecideAbsenceInput) (*worktime.StaffAbsence, error) {
	return s.decideAbsence(ctx, in, worktime.AbsenceStatusRejected)
}

func (s *Service) decideAbsence(ctx context.Context, in DecideAbsenceInput, status worktime.AbsenceStatus) (*worktime.StaffAbsence, error) {
	id, err := normalizeID(in.ID, ErrInvalidID)
	if err != nil {
		return nil, err
	}
	actor, err := normalizeID(in.ActorID, ErrInvalidActorID)
	if err != nil {
		return nil, err
	}

	var decided *worktime.StaffAbsence
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		absence, err := s.repo.FindAbsenceByID(txCtx, id)
		if err != nil {
			return err
		}
		if absence.Status != worktime.AbsenceStatusPending {
			return ErrAbsenceAlreadyDecided
		}

		now := s.clock.Now()
		absence.Status = status
		absence.ApprovedBy = &actor
		absence.ApprovedAt = &now
		absence.UpdatedAt = now

		result, err := s.repo.UpdateAbsence(txCtx, absence)
		if err != nil {
			return err
		}
		decided = result
		return nil
	}); err != nil {
		return nil, err
	}

	return decided, nil
}

// ListAbsences は欠勤の一覧を開始日順で返します。
func (s *Service) ListAbsences(ctx context.Context, in ListAbsencesInput) ([]*worktime.StaffAbsence, error) {
	filter := AbsenceFilter{StaffID: strings.TrimSpace(in.StaffID)}
	if in.From != "" || in.To != "" {
		from, to, err := s.parseRange(in.From, in.To)
		if err != nil {
			return nil, err
		}
		filter.From = from.Format(time.DateOnly)
		filter.To = to.Format(time.DateOnly)
	}
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, ErrInvalidStatus
		}
		status := *in.Status
		filter.Status = &status
	}

	var result []*worktime.StaffAbsence
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListAbsences(txCtx, filter)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteAbsence は欠勤を削除します。
func (s *Service) DeleteAbsence(ctx context.Context, id string) error {
	trimmed, err := normalizeID(id, ErrInvalidID)
	if err != nil {
		return err
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.DeleteAbsence(txCtx, trimmed)
	})
}

// absenceDays は期間内の平日数を返します。半日の場合は 0.5 です。
func absenceDays(start, end time.Time, halfDay bool) float64 {
	if halfDay {
		return 0.5
	}

	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return float64(days)
}
