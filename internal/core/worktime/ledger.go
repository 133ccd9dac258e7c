package worktime

import (
	"sort"
	"time"
)

// Flags は上流 (データソース) が計算済みの判定値です。nil の項目は Policy で補完します。
type Flags struct {
	IsOvertime       *bool
	IsBreakCompliant *bool
}

// Ledger は勤怠の派生値計算をまとめた状態を持たない値です。並行に呼び出して構いません。
type Ledger struct {
	policy Policy
}

// NewLedger は Ledger を生成します。
func NewLedger(policy Policy) *Ledger {
	return &Ledger{policy: policy}
}

// Derive はセッションから WorkSessionHistory を組み立てます。
func (l *Ledger) Derive(session WorkSession, breaks []WorkSessionBreak, editCount int, flags Flags) WorkSessionHistory {
	net := NetMinutes(session.CheckInTime, session.CheckOutTime, session.BreakMinutes)

	sorted := make([]WorkSessionBreak, len(breaks))
	copy(sorted, breaks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.Before(sorted[j].StartedAt)
	})

	h := WorkSessionHistory{
		WorkSession:      session,
		NetMinutes:       net,
		IsBreakCompliant: true,
		Breaks:           sorted,
		EditCount:        editCount,
	}

	if net != nil {
		h.IsOvertime = l.policy.IsOvertime(*net)
		h.IsBreakCompliant = l.policy.IsBreakCompliant(*net, session.BreakMinutes)
	}
	if flags.IsOvertime != nil {
		h.IsOvertime = *flags.IsOvertime
	}
	if flags.IsBreakCompliant != nil {
		h.IsBreakCompliant = *flags.IsBreakCompliant
	}

	return h
}

// DeriveAll は複数セッションをまとめて派生させます。breaks と editCounts はセッション ID で引きます。
func (l *Ledger) DeriveAll(sessions []WorkSession, breaks map[string][]WorkSessionBreak, editCounts map[string]int) []WorkSessionHistory {
	histories := make([]WorkSessionHistory, 0, len(sessions))
	for _, s := range sessions {
		histories = append(histories, l.Derive(s, breaks[s.ID], editCounts[s.ID], Flags{}))
	}
	return histories
}

// Warnings は Evaluate を呼び出します。
func (l *Ledger) Warnings(h WorkSessionHistory) []Warning {
	return Evaluate(h)
}

// WeekDays は WeekDays を呼び出します。
func (l *Ledger) WeekDays(date time.Time) [7]time.Time {
	return WeekDays(date)
}

// WeekNumber は WeekNumber を呼び出します。
func (l *Ledger) WeekNumber(date time.Time) int {
	return WeekNumber(date)
}
