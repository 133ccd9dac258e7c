package timetracking

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/ogs-worktime/internal/core/worktime"
)

const maxHistoryRangeDays = 366

// SessionView は導出済みの履歴と警告をまとめた表示用の値です。
type SessionView struct {
	History  worktime.WorkSessionHistory
	Warnings []worktime.Warning
}

// ListHistoryInput は履歴一覧の入力です。From / To は YYYY-MM-DD で両端を含みます。
type ListHistoryInput struct {
	StaffID string
	From    string
	To      string
}

// WeekSummaryInput は週集計の入力です。Date を含む ISO 週を集計します。
type WeekSummaryInput struct {
	StaffID string
	Date    string
}

// DaySummary は週集計の 1 日分です。
type DaySummary struct {
	Date       string
	Sessions   []SessionView
	NetMinutes int
	Absences   []*worktime.StaffAbsence
}

// WeekSummary は ISO 週単位の集計です。
type WeekSummary struct {
	Year       int
	Week       int
	Days       [7]DaySummary
	NetMinutes int
	Warnings   int
}

// GetSession はセッションを ID で取得します。
func (s *Service) GetSession(ctx context.Context, id string) (*SessionView, error) {
	trimmed, err := normalizeID(id, ErrInvalidID)
	if err != nil {
		return nil, err
	}

	var session *worktime.WorkSession
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindSessionByID(txCtx, trimmed)
		if err != nil {
			return err
		}
		session = found
		return nil
	}); err != nil {
		return nil, err
	}

	return s.view(ctx, session)
}

// GetCurrentSession は勤務中または本日のセッションを返します。
func (s *Service) GetCurrentSession(ctx context.Context, staffID string) (*SessionView, error) {
	trimmed, err := normalizeID(staffID, ErrInvalidStaffID)
	if err != nil {
		return nil, err
	}

	var session *worktime.WorkSession
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindOpenSessionByStaff(txCtx, trimmed)
		if errors.Is(err, ErrSessionNotFound) {
			found, err = s.repo.FindSessionByStaffAndDate(txCtx, trimmed, s.dateOf(s.clock.Now()))
		}
		if err != nil {
			return err
		}
		session = found
		return nil
	}); err != nil {
		return nil, err
	}

	return s.view(ctx, session)
}

// ListHistory は期間内のセッション履歴を日付順で返します。
func (s *Service) ListHistory(ctx context.Context, in ListHistoryInput) ([]SessionView, error) {
	staffID, err := normalizeID(in.StaffID, ErrInvalidStaffID)
	if err != nil {
		return nil, err
	}
	from, to, err := s.parseRange(in.From, in.To)
	if err != nil {
		return nil, err
	}

	var sessions []*worktime.WorkSession
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListSessions(txCtx, SessionFilter{
			StaffID: staffID,
			From:    from.Format(time.DateOnly),
			To:      to.Format(time.DateOnly),
		})
		if err != nil {
			return err
		}
		sessions = found
		return nil
	}); err != nil {
		return nil, err
	}

	return s.views(ctx, sessions)
}

// GetWeekSummary は Date を含む週 (月曜から日曜) の勤務時間と承認済み欠勤を集計します。
func (s *Service) GetWeekSummary(ctx context.Context, in WeekSummaryInput) (*WeekSummary, error) {
	staffID, err := normalizeID(in.StaffID, ErrInvalidStaffID)
	if err != nil {
		return nil, err
	}

	var anchor time.Time
	if in.Date == "" {
		anchor = s.clock.Now().In(s.loc)
	} else if anchor, err = s.parseDate(in.Date); err != nil {
		return nil, err
	}

	days := s.ledger.WeekDays(anchor)
	from := days[0].Format(time.DateOnly)
	to := days[6].Format(time.DateOnly)

	approved := worktime.AbsenceStatusApproved
	var (
		sessions []*worktime.WorkSession
		absences []*worktime.StaffAbsence
	)
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListSessions(txCtx, SessionFilter{StaffID: staffID, From: from, To: to})
		if err != nil {
			return err
		}
		sessions = found

		absent, err := s.repo.ListAbsences(txCtx, AbsenceFilter{StaffID: staffID, From: from, To: to, Status: &approved})
		if err != nil {
			return err
		}
		absences = absent
		return nil
	}); err != nil {
		return nil, err
	}

	views, err := s.views(ctx, sessions)
	if err != nil {
		return nil, err
	}

	year, _ := days[3].ISOWeek()
	summary := &WeekSummary{Year: year, Week: s.ledger.WeekNumber(anchor)}
	for i, day := range days {
		date := day.Format(time.DateOnly)
		summary.Days[i].Date = date

		for _, v := range views {
			if v.History.Date != date {
				continue
			}
			summary.Days[i].Sessions = append(summary.Days[i].Sessions, v)
			if v.History.NetMinutes != nil {
				summary.Days[i].NetMinutes += *v.History.NetMinutes
			}
			summary.Warnings += len(v.Warnings)
		}

		for _, a := range absences {
			if a.DateStart <= date && date <= a.DateEnd {
				summary.Days[i].Absences = append(summary.Days[i].Absences, a)
			}
		}

		summary.NetMinutes += summary.Days[i].NetMinutes
	}

	return summary, nil
}

func (s *Service) view(ctx context.Context, session *worktime.WorkSession) (*SessionView, error) {
	views, err := s.views(ctx, []*worktime.WorkSession{session})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// views は休憩と修正回数を並行して取得し、履歴を導出します。
func (s *Service) views(ctx context.Context, sessions []*worktime.WorkSession) ([]SessionView, error) {
	if len(sessions) == 0 {
		return []SessionView{}, nil
	}

	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}

	var (
		breaks     map[string][]worktime.WorkSessionBreak
		editCounts map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.tx.WithinReadOnly(gctx, func(txCtx context.Context) error {
			found, err := s.repo.ListBreaks(txCtx, ids)
			if err != nil {
				return err
			}
			breaks = found
			return nil
		})
	})
	g.Go(func() error {
		counts, err := s.audit.CountBySessions(gctx, ids)
		if err != nil {
			return err
		}
		editCounts = counts
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	current := make([]worktime.WorkSession, 0, len(sessions))
	for _, session := range sessions {
		c := *session
		if c.IsOpen() {
			// 勤務中は進行中の休憩も含めた分数を表示します。
			c.BreakMinutes = worktime.BreakMinutes(breaks[c.ID], now)
		}
		current = append(current, c)
	}

	histories := s.ledger.DeriveAll(current, breaks, editCounts)
	views := make([]SessionView, 0, len(histories))
	for _, history := range histories {
		views = append(views, SessionView{History: history, Warnings: s.ledger.Warnings(history)})
	}
	return views, nil
}

func (s *Service) parseRange(rawFrom, rawTo string) (time.Time, time.Time, error) {
	from, err := s.parseDate(rawFrom)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := s.parseDate(rawTo)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) || to.Sub(from) > maxHistoryRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return from, to, nil
}
