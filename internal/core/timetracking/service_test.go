package timetracking

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/ogs-worktime/internal/core/staff"
	"github.com/ogurasousui/ogs-worktime/internal/core/worktime"
)

var cet = time.FixedZone("CET", 60*60)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeRepo struct {
	mu       sync.Mutex
	sequence int
	sessions map[string]*worktime.WorkSession
	breaks   map[string]*worktime.WorkSessionBreak
	absences map[string]*worktime.StaffAbsence
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions: make(map[string]*worktime.WorkSession),
		breaks:   make(map[string]*worktime.WorkSessionBreak),
		absences: make(map[string]*worktime.StaffAbsence),
	}
}

func (r *fakeRepo) nextID() string {
	r.sequence++
	return strconv.Itoa(r.sequence)
}

func (r *fakeRepo) CreateSession(_ context.Context, s *worktime.WorkSession) (*worktime.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	clone.ID = r.nextID()
	r.sessions[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeRepo) UpdateSession(_ context.Context, s *worktime.WorkSession) (*worktime.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return nil, ErrSessionNotFound
	}
	clone := *s
	r.sessions[s.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeRepo) CloseOpenSession(_ context.Context, s *worktime.WorkSession) (*worktime.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[s.ID]
	if !ok || stored.CheckOutTime != nil {
		return nil, ErrSessionNotFound
	}
	clone := *s
	r.sessions[s.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeRepo) FindSessionByID(_ context.Context, id string) (*worktime.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

func (r *fakeRepo) FindSessionByStaffAndDate(_ context.Context, staffID, date string) (*worktime.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.StaffID == staffID && s.Date == date {
			out := *s
			return &out, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (r *fakeRepo) FindOpenSessionByStaff(_ context.Context, staffID string) (*worktime.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.StaffID == staffID && s.IsOpen() {
			out := *s
			return &out, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (r *fakeRepo) ListSessions(_ context.Context, filter SessionFilter) ([]*worktime.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*worktime.WorkSession
	for _, s := range r.sessions {
		if s.StaffID != filter.StaffID || s.Date < filter.From || s.Date > filter.To {
			continue
		}
		clone := *s
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *fakeRepo) ListOpenSessionsBefore(_ context.Context, date string) ([]*worktime.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*worktime.WorkSession
	for _, s := range r.sessions {
		if s.IsOpen() && s.Date < date {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateBreak(_ context.Context, b *worktime.WorkSessionBreak) (*worktime.WorkSessionBreak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *b
	clone.ID = r.nextID()
	r.breaks[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeRepo) UpdateBreak(_ context.Context, b *worktime.WorkSessionBreak) (*worktime.WorkSessionBreak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.breaks[b.ID]; !ok {
		return nil, ErrBreakNotFound
	}
	clone := *b
	r.breaks[b.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeRepo) FindActiveBreak(_ context.Context, sessionID string) (*worktime.WorkSessionBreak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.breaks {
		if b.SessionID == sessionID && b.IsActive() {
			out := *b
			return &out, nil
		}
	}
	return nil, ErrBreakNotFound
}

func (r *fakeRepo) ListBreaks(_ context.Context, sessionIDs []string) (map[string][]worktime.WorkSessionBreak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]worktime.WorkSessionBreak)
	for _, id := range sessionIDs {
		for _, b := range r.breaks {
			if b.SessionID == id {
				out[id] = append(out[id], *b)
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateAbsence(_ context.Context, a *worktime.StaffAbsence) (*worktime.StaffAbsence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *a
	clone.ID = r.nextID()
	r.absences[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeRepo) UpdateAbsence(_ context.Context, a *worktime.StaffAbsence) (*worktime.StaffAbsence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.absences[a.ID]; !ok {
		return nil, ErrAbsenceNotFound
	}
	clone := *a
	r.absences[a.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeRepo) DeleteAbsence(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.absences[id]; !ok {
		return ErrAbsenceNotFound
	}
	delete(r.absences, id)
	return nil
}

func (r *fakeRepo) FindAbsenceByID(_ context.Context, id string) (*worktime.StaffAbsence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.absences[id]
	if !ok {
		return nil, ErrAbsenceNotFound
	}
	out := *a
	return &out, nil
}

func (r *fakeRepo) ListAbsences(_ context.Context, filter AbsenceFilter) ([]*worktime.StaffAbsence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*worktime.StaffAbsence
	for _, a := range r.absences {
		if filter.StaffID != "" && a.StaffID != filter.StaffID {
			continue
		}
		if filter.From != "" && a.DateEnd < filter.From {
			continue
		}
		if filter.To != "" && a.DateStart > filter.To {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		clone := *a
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateStart < out[j].DateStart })
	return out, nil
}

// snapshot は現在の状態を保存し、復元する関数を返します。
func (r *fakeRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make(map[string]worktime.WorkSession, len(r.sessions))
	for id, s := range r.sessions {
		sessions[id] = *s
	}
	breaks := make(map[string]worktime.WorkSessionBreak, len(r.breaks))
	for id, b := range r.breaks {
		breaks[id] = *b
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.sessions = make(map[string]*worktime.WorkSession, len(sessions))
		for id, s := range sessions {
			s := s
			r.sessions[id] = &s
		}
		r.breaks = make(map[string]*worktime.WorkSessionBreak, len(breaks))
		for id, b := range breaks {
			b := b
			r.breaks[id] = &b
		}
	}
}

// rollbackTx はエラー時に fakeRepo を元に戻します。failCommits 回だけコミット失敗を模して再実行します。
type rollbackTx struct {
	repo        *fakeRepo
	failCommits int
}

func (tx *rollbackTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (tx *rollbackTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	for {
		restore := tx.repo.snapshot()
		if err := fn(ctx); err != nil {
			restore()
			return err
		}
		if tx.failCommits > 0 {
			tx.failCommits--
			restore()
			continue
		}
		return nil
	}
}

// racingRepo は一覧取得の直後に afterList を一度だけ実行します。
type racingRepo struct {
	*fakeRepo
	once      sync.Once
	afterList func()
}

func (r *racingRepo) ListOpenSessionsBefore(ctx context.Context, date string) ([]*worktime.WorkSession, error) {
	sessions, err := r.fakeRepo.ListOpenSessionsBefore(ctx, date)
	if err != nil {
		return nil, err
	}
	r.once.Do(r.afterList)
	return sessions, nil
}

var errAuditDown = errors.New("audit log unavailable")

type failingAudit struct {
	fakeAudit
}

func (a *failingAudit) Record(context.Context, *SessionEdit) error {
	return errAuditDown
}

type fakeAudit struct {
	mu    sync.Mutex
	edits []*SessionEdit
}

func (a *fakeAudit) Record(_ context.Context, edit *SessionEdit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	clone := *edit
	clone.ID = strconv.Itoa(len(a.edits) + 1)
	a.edits = append(a.edits, &clone)
	return nil
}

func (a *fakeAudit) CountBySessions(_ context.Context, sessionIDs []string) (map[string]int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	counts := make(map[string]int)
	for _, id := range sessionIDs {
		for _, e := range a.edits {
			if e.SessionID == id {
				counts[id]++
			}
		}
	}
	return counts, nil
}

func (a *fakeAudit) ListBySession(_ context.Context, sessionID string) ([]*SessionEdit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*SessionEdit
	for _, e := range a.edits {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeDirectory map[string]staff.Status

func (d fakeDirectory) LookupActive(_ context.Context, id string) (*staff.Staff, error) {
	status, ok := d[id]
	if !ok {
		return nil, staff.ErrStaffNotFound
	}
	if status != staff.StatusActive {
		return nil, staff.ErrInvalidStatus
	}
	return &staff.Staff{ID: id, Status: status}, nil
}

type fixture struct {
	svc   *Service
	repo  *fakeRepo
	audit *fakeAudit
	clock *stubClock
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	repo := newFakeRepo()
	audit := &fakeAudit{}
	clock := &stubClock{now: now}
	directory := fakeDirectory{"7": staff.StatusActive, "8": staff.StatusInactive}
	svc := NewService(repo, directory, audit, clock, nil, Settings{
		Location:       cet,
		AutoCheckOutAt: 20 * time.Hour,
		Policy:         worktime.DefaultPolicy(),
	})
	return &fixture{svc: svc, repo: repo, audit: audit, clock: clock}
}

func TestService_WorkdayFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC))
	ctx := context.Background()

	session, err := f.svc.CheckIn(ctx, CheckInInput{StaffID: "7", Notes: "  early shift "})
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	if session.Date != "2026-01-15" || session.Status != worktime.StatusPresent || session.Notes != "early shift" {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.CreatedBy != "7" {
		t.Fatalf("expected creator to default to staff, got %q", session.CreatedBy)
	}

	if _, err := f.svc.CheckIn(ctx, CheckInInput{StaffID: "7"}); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}

	f.clock.Set(time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC))
	if _, err := f.svc.StartBreak(ctx, StaffInput{StaffID: "7"}); err != nil {
		t.Fatalf("StartBreak returned error: %v", err)
	}
	if _, err := f.svc.StartBreak(ctx, StaffInput{StaffID: "7"}); !errors.Is(err, ErrBreakAlreadyActive) {
		t.Fatalf("expected ErrBreakAlreadyActive, got %v", err)
	}

	f.clock.Set(time.Date(2026, 1, 15, 11, 20, 0, 0, time.UTC))
	current, err := f.svc.GetCurrentSession(ctx, "7")
	if err != nil {
		t.Fatalf("GetCurrentSession returned error: %v", err)
	}
	if current.History.BreakMinutes != 20 || current.History.NetMinutes != nil {
		t.Fatalf("open session should show running break, got %+v", current.History)
	}

	f.clock.Set(time.Date(2026, 1, 15, 11, 30, 40, 0, time.UTC))
	ended, err := f.svc.EndBreak(ctx, StaffInput{StaffID: "7"})
	if err != nil {
		t.Fatalf("EndBreak returned error: %v", err)
	}
	if ended.DurationMinutes != 30 {
		t.Fatalf("expected 30 minute break, got %d", ended.DurationMinutes)
	}
	if _, err := f.svc.EndBreak(ctx, StaffInput{StaffID: "7"}); !errors.Is(err, ErrNoActiveBreak) {
		t.Fatalf("expected ErrNoActiveBreak, got %v", err)
	}

	f.clock.Set(time.Date(2026, 1, 15, 16, 0, 0, 0, time.UTC))
	view, err := f.svc.CheckOut(ctx, StaffInput{StaffID: "7"})
	if err != nil {
		t.Fatalf("CheckOut returned error: %v", err)
	}
	if view.History.NetMinutes == nil || *view.History.NetMinutes != 510 {
		t.Fatalf("expected 510 net minutes, got %v", view.History.NetMinutes)
	}
	if !view.History.IsBreakCompliant || !view.History.IsOvertime {
		t.Fatalf("unexpected flags %+v", view.History)
	}
	if len(view.Warnings) != 0 || len(view.History.Breaks) != 1 {
		t.Fatalf("unexpected view %+v", view)
	}

	if _, err := f.svc.CheckOut(ctx, StaffInput{StaffID: "7"}); !errors.Is(err, ErrAlreadyCheckedOut) {
		t.Fatalf("expected ErrAlreadyCheckedOut, got %v", err)
	}
}

func TestService_CheckOutClosesActiveBreak(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := f.svc.CheckIn(ctx, CheckInInput{StaffID: "7", Status: worktime.StatusHomeOffice}); err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	f.clock.Set(time.Date(2026, 1, 15, 15, 40, 0, 0, time.UTC))
	if _, err := f.svc.StartBreak(ctx, StaffInput{StaffID: "7"}); err != nil {
		t.Fatalf("StartBreak returned error: %v", err)
	}

	f.clock.Set(time.Date(2026, 1, 15, 16, 0, 0, 0, time.UTC))
	view, err := f.svc.CheckOut(ctx, StaffInput{StaffID: "7"})
	if err != nil {
		t.Fatalf("CheckOut returned error: %v", err)
	}

	if view.History.BreakMinutes != 20 {
		t.Fatalf("expected break minutes 20, got %d", view.History.BreakMinutes)
	}
	if *view.History.NetMinutes != 580 {
		t.Fatalf("expected 580 net minutes, got %d", *view.History.NetMinutes)
	}
	if len(view.Warnings) != 1 || view.Warnings[0].Code != worktime.WarningBreakUnder45Over9h {
		t.Fatalf("expected 45 minute break warning, got %+v", view.Warnings)
	}
	if view.History.Breaks[0].IsActive() {
		t.Fatalf("break should be closed on check-out")
	}
}

func TestService_CheckInValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC))
	ctx := context.Background()

	tests := []struct {
		name string
		in   CheckInInput
		want error
	}{
		{name: "missing staff", in: CheckInInput{StaffID: " "}, want: ErrInvalidStaffID},
		{name: "invalid status", in: CheckInInput{StaffID: "7", Status: "remote"}, want: ErrInvalidStatus},
		{name: "unknown staff", in: CheckInInput{StaffID: "99"}, want: ErrStaffUnavailable},
		{name: "inactive staff", in: CheckInInput{StaffID: "8"}, want: ErrStaffUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CheckIn(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := f.svc.StartBreak(ctx, StaffInput{StaffID: "7"}); !errors.Is(err, ErrNotCheckedIn) {
		t.Fatalf("expected ErrNotCheckedIn, got %v", err)
	}
}

func TestService_CorrectSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC))
	ctx := context.Background()

	session, err := f.svc.CheckIn(ctx, CheckInInput{StaffID: "7"})
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}

	out := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	breakMinutes := 15
	view, err := f.svc.CorrectSession(ctx, CorrectSessionInput{
		ID:              session.ID,
		ActorID:         "1",
		Reason:          "forgot to check out",
		CheckOutTime:    &out,
		CheckOutTimeSet: true,
		BreakMinutes:    &breakMinutes,
	})
	if err != nil {
		t.Fatalf("CorrectSession returned error: %v", err)
	}

	if *view.History.NetMinutes != 405 {
		t.Fatalf("expected 405 net minutes, got %d", *view.History.NetMinutes)
	}
	if view.History.EditCount != 1 {
		t.Fatalf("expected edit count 1, got %d", view.History.EditCount)
	}
	if len(view.Warnings) != 1 || view.Warnings[0].Code != worktime.WarningBreakUnder30Over6h {
		t.Fatalf("unexpected warnings %+v", view.Warnings)
	}
	if view.History.UpdatedBy == nil || *view.History.UpdatedBy != "1" {
		t.Fatalf("expected updated by admin, got %v", view.History.UpdatedBy)
	}

	edits, err := f.svc.ListCorrections(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListCorrections returned error: %v", err)
	}
	if len(edits) != 1 || len(edits[0].Changes) != 2 || edits[0].Reason != "forgot to check out" {
		t.Fatalf("unexpected audit entries %+v", edits)
	}
	if edits[0].Changes[0].Field != "checkOutTime" || edits[0].Changes[0].Before != "" {
		t.Fatalf("unexpected change %+v", edits[0].Changes[0])
	}

	// 変更がない場合は監査ログを追加しない
	if _, err := f.svc.CorrectSession(ctx, CorrectSessionInput{ID: session.ID, ActorID: "1", BreakMinutes: &breakMinutes}); err != nil {
		t.Fatalf("CorrectSession returned error: %v", err)
	}
	if len(f.audit.edits) != 1 {
		t.Fatalf("no-op correction must not be audited")
	}

	early := time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)
	if _, err := f.svc.CorrectSession(ctx, CorrectSessionInput{ID: session.ID, ActorID: "1", CheckOutTime: &early, CheckOutTimeSet: true}); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}

	negative := -1
	if _, err := f.svc.CorrectSession(ctx, CorrectSessionInput{ID: session.ID, ActorID: "1", BreakMinutes: &negative}); !errors.Is(err, ErrInvalidBreakMinutes) {
		t.Fatalf("expected ErrInvalidBreakMinutes, got %v", err)
	}
	if _, err := f.svc.CorrectSession(ctx, CorrectSessionInput{ID: session.ID}); !errors.Is(err, ErrInvalidActorID) {
		t.Fatalf("expected ErrInvalidActorID, got %v", err)
	}
	if _, err := f.svc.CorrectSession(ctx, CorrectSessionInput{ID: "404", ActorID: "1"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestService_AutoCheckOut(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Date(2026, 1, 14, 7, 0, 0, 0, time.UTC))
	ctx := context.Background()

	session, err := f.svc.CheckIn(ctx, CheckInInput{StaffID: "7"})
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	f.clock.Set(time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC))
	if _, err := f.svc.StartBreak(ctx, StaffInput{StaffID: "7"}); err != nil {
		t.Fatalf("StartBreak returned error: %v", err)
	}

	// 同日中は対象外
	closed, err := f.svc.AutoCheckOut(ctx)
	if err != nil || closed != 0 {
		t.Fatalf("expected no sessions closed on the same day, got %d, %v", closed, err)
	}

	f.clock.Set(time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC))
	closed, err = f.svc.AutoCheckOut(ctx)
	if err != nil {
		t.Fatalf("AutoCheckOut returned error: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 closed session, got %d", closed)
	}

	view, err := f.svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	want := time.Date(2026, 1, 14, 19, 0, 0, 0, time.UTC)
	if view.History.CheckOutTime == nil || !view.History.CheckOutTime.Equal(want) {
		t.Fatalf("expected auto check-out at %v, got %v", want, view.History.CheckOutTime)
	}
	if !view.History.AutoCheckedOut {
		t.Fatalf("expected auto checked out flag")
	}
	if view.History.BreakMinutes != 420 {
		t.Fatalf("expected open break closed at cutoff, got %d minutes", view.History.BreakMinutes)
	}
	codes := worktime.ComplianceWarnings(view.History)
	if len(codes) != 1 || codes[0] != worktime.WarningAutoCheckedOut.DefaultMessage() {
		t.Fatalf("unexpected warnings %v", codes)
	}
}

func TestService_AutoCheckOutKeepsStaffCheckOut(t *testing.T) {
	t.Parallel()

	repo := &racingRepo{fakeRepo: newFakeRepo()}
	clock := &stubClock{now: time.Date(2026, 1, 14, 7, 0, 0, 0, time.UTC)}
	svc := NewService(repo, fakeDirectory{"7": staff.StatusActive}, &fakeAudit{}, clock, nil, Settings{
		Location:       cet,
		AutoCheckOutAt: 20 * time.Hour,
		Policy:         worktime.DefaultPolicy(),
	})
	ctx := context.Background()

	session, err := svc.CheckIn(ctx, CheckInInput{StaffID: "7"})
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}

	staffCheckOut := time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC)
	clock.Set(staffCheckOut)
	repo.afterList = func() {
		if _, err := svc.CheckOut(ctx, StaffInput{StaffID: "7"}); err != nil {
			t.Errorf("CheckOut returned error: %v", err)
		}
	}

	closed, err := svc.AutoCheckOut(ctx)
	if err != nil {
		t.Fatalf("AutoCheckOut returned error: %v", err)
	}
	if closed != 0 {
		t.Fatalf("expected no sessions closed, got %d", closed)
	}

	stored, err := repo.FindSessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("FindSessionByID returned error: %v", err)
	}
	if stored.CheckOutTime == nil || !stored.CheckOutTime.Equal(staffCheckOut) {
		t.Fatalf("expected staff check-out %v to be kept, got %v", staffCheckOut, stored.CheckOutTime)
	}
	if stored.AutoCheckedOut {
		t.Fatalf("session closed by staff must not be flagged as auto checked out")
	}
}

func TestService_AutoCheckOutRetryCountsBreakOnce(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	tx := &rollbackTx{repo: repo}
	clock := &stubClock{now: time.Date(2026, 1, 14, 7, 0, 0, 0, time.UTC)}
	svc := NewService(repo, fakeDirectory{"7": staff.StatusActive}, &fakeAudit{}, clock, tx, Settings{
		Location:       cet,
		AutoCheckOutAt: 20 * time.Hour,
		Policy:         worktime.DefaultPolicy(),
	})
	ctx := context.Background()

	session, err := svc.CheckIn(ctx, CheckInInput{StaffID: "7"})
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	clock.Set(time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC))
	if _, err := svc.StartBreak(ctx, StaffInput{StaffID: "7"}); err != nil {
		t.Fatalf("StartBreak returned error: %v", err)
	}

	clock.Set(time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC))
	tx.failCommits = 1
	closed, err := svc.AutoCheckOut(ctx)
	if err != nil {
		t.Fatalf("AutoCheckOut returned error: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 closed session, got %d", closed)
	}

	stored, err := repo.FindSessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("FindSessionByID returned error: %v", err)
	}
	if stored.BreakMinutes != 420 {
		t.Fatalf("expected break minutes 420 after retry, got %d", stored.BreakMinutes)
	}
	if !stored.AutoCheckedOut {
		t.Fatalf("expected auto checked out flag")
	}
}

func TestService_CorrectSessionRollsBackWithoutAudit(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	audit := &failingAudit{}
	clock := &stubClock{now: time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)}
	svc := NewService(repo, fakeDirectory{"7": staff.StatusActive}, audit, clock, &rollbackTx{repo: repo}, Settings{
		Location: cet,
		Policy:   worktime.DefaultPolicy(),
	})
	ctx := context.Background()

	session, err := svc.CheckIn(ctx, CheckInInput{StaffID: "7"})
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}

	breakMinutes := 50
	if _, err := svc.CorrectSession(ctx, CorrectSessionInput{ID: session.ID, ActorID: "1", BreakMinutes: &breakMinutes}); !errors.Is(err, errAuditDown) {
		t.Fatalf("expected audit error, got %v", err)
	}

	stored, err := repo.FindSessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("FindSessionByID returned error: %v", err)
	}
	if stored.BreakMinutes != 0 || stored.UpdatedBy != nil {
		t.Fatalf("correction must not persist without an audit entry, got %+v", stored)
	}
}

func TestService_ListHistoryAndWeekSummary(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Date(2026, 1, 12, 7, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for day := 12; day <= 14; day++ {
		f.clock.Set(time.Date(2026, 1, day, 7, 0, 0, 0, time.UTC))
		if _, err := f.svc.CheckIn(ctx, CheckInInput{StaffID: "7"}); err != nil {
			t.Fatalf("CheckIn returned error: %v", err)
		}
		f.clock.Set(time.Date(2026, 1, day, 11, 0, 0, 0, time.UTC))
		if _, err := f.svc.CheckOut(ctx, StaffInput{StaffID: "7"}); err != nil {
			t.Fatalf("CheckOut returned error: %v", err)
		}
	}

	absence, err := f.svc.CreateAbsence(ctx, CreateAbsenceInput{StaffID: "7", DateStart: "2026-01-15", DateEnd: "2026-01-16", AbsenceType: worktime.AbsenceTypeVacation})
	if err != nil {
		t.Fatalf("CreateAbsence returned error: %v", err)
	}
	if _, err := f.svc.ApproveAbsence(ctx, DecideAbsenceInput{ID: absence.ID, ActorID: "1"}); err != nil {
		t.Fatalf("ApproveAbsence returned error: %v", err)
	}

	views, err := f.svc.ListHistory(ctx, ListHistoryInput{StaffID: "7", From: "2026-01-01", To: "2026-01-31"})
	if err != nil {
		t.Fatalf("ListHistory returned error: %v", err)
	}
	if len(views) != 3 || views[0].History.Date != "2026-01-12" {
		t.Fatalf("unexpected histories %+v", views)
	}

	summary, err := f.svc.GetWeekSummary(ctx, WeekSummaryInput{StaffID: "7", Date: "2026-01-18"})
	if err != nil {
		t.Fatalf("GetWeekSummary returned error: %v", err)
	}
	if summary.Week != 3 || summary.Year != 2026 {
		t.Fatalf("expected week 3 of 2026, got %d/%d", summary.Week, summary.Year)
	}
	if summary.Days[0].Date != "2026-01-12" || summary.Days[6].Date != "2026-01-18" {
		t.Fatalf("unexpected week days %s..%s", summary.Days[0].Date, summary.Days[6].Date)
	}
	if summary.NetMinutes != 720 || summary.Days[0].NetMinutes != 240 {
		t.Fatalf("unexpected totals %d / %d", summary.NetMinutes, summary.Days[0].NetMinutes)
	}
	if len(summary.Days[3].Absences) != 1 || len(summary.Days[4].Absences) != 1 || len(summary.Days[5].Absences) != 0 {
		t.Fatalf("absences not assigned to their days")
	}

	if _, err := f.svc.ListHistory(ctx, ListHistoryInput{StaffID: "7", From: "2026-02-01", To: "2026-01-01"}); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	if _, err := f.svc.ListHistory(ctx, ListHistoryInput{StaffID: "7", From: "01/02/2026", To: "2026-01-01"}); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestService_Absences(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Date(2026, 1, 12, 7, 0, 0, 0, time.UTC))
	ctx := context.Background()

	tests := []struct {
		name     string
		in       CreateAbsenceInput
		wantDays float64
		wantErr  error
	}{
		{
			name:     "full week with weekend",
			in:       CreateAbsenceInput{StaffID: "7", DateStart: "2026-02-02", DateEnd: "2026-02-08", AbsenceType: worktime.AbsenceTypeVacation},
			wantDays: 5,
		},
		{
			name:     "half day",
			in:       CreateAbsenceInput{StaffID: "7", DateStart: "2026-02-10", AbsenceType: worktime.AbsenceTypeSick, HalfDay: true},
			wantDays: 0.5,
		},
		{
			name:    "half day over several days",
			in:      CreateAbsenceInput{StaffID: "7", DateStart: "2026-03-02", DateEnd: "2026-03-03", AbsenceType: worktime.AbsenceTypeSick, HalfDay: true},
			wantErr: ErrInvalidHalfDay,
		},
		{
			name:    "end before start",
			in:      CreateAbsenceInput{StaffID: "7", DateStart: "2026-03-03", DateEnd: "2026-03-02", AbsenceType: worktime.AbsenceTypeTraining},
			wantErr: ErrInvalidDateRange,
		},
		{
			name:    "overlap",
			in:      CreateAbsenceInput{StaffID: "7", DateStart: "2026-02-06", DateEnd: "2026-02-09", AbsenceType: worktime.AbsenceTypeOther},
			wantErr: ErrAbsenceOverlap,
		},
		{
			name:    "unknown type",
			in:      CreateAbsenceInput{StaffID: "7", DateStart: "2026-03-02", AbsenceType: "holiday"},
			wantErr: ErrInvalidAbsenceType,
		},
		{
			name:    "inactive staff",
			in:      CreateAbsenceInput{StaffID: "8", DateStart: "2026-03-02", AbsenceType: worktime.AbsenceTypeSpecial},
			wantErr: ErrStaffUnavailable,
		},
	}

	for _, tt := range tests {
		got, err := f.svc.CreateAbsence(ctx, tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if got.DurationDays != tt.wantDays || got.Status != worktime.AbsenceStatusPending {
			t.Fatalf("%s: unexpected absence %+v", tt.name, got)
		}
	}

	pending := worktime.AbsenceStatusPending
	list, err := f.svc.ListAbsences(ctx, ListAbsencesInput{StaffID: "7", Status: &pending})
	if err != nil {
		t.Fatalf("ListAbsences returned error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 pending absences, got %d", len(list))
	}

	rejected, err := f.svc.RejectAbsence(ctx, DecideAbsenceInput{ID: list[0].ID, ActorID: "1"})
	if err != nil {
		t.Fatalf("RejectAbsence returned error: %v", err)
	}
	if rejected.Status != worktime.AbsenceStatusRejected || rejected.ApprovedBy == nil || rejected.ApprovedAt == nil {
		t.Fatalf("unexpected rejected absence %+v", rejected)
	}
	if _, err := f.svc.ApproveAbsence(ctx, DecideAbsenceInput{ID: list[0].ID, ActorID: "1"}); !errors.Is(err, ErrAbsenceAlreadyDecided) {
		t.Fatalf("expected ErrAbsenceAlreadyDecided, got %v", err)
	}

	// 却下済みの期間には再申請できる
	if _, err := f.svc.CreateAbsence(ctx, CreateAbsenceInput{StaffID: "7", DateStart: "2026-02-04", AbsenceType: worktime.AbsenceTypeTraining}); err != nil {
		t.Fatalf("expected re-application over rejected absence, got %v", err)
	}

	if err := f.svc.DeleteAbsence(ctx, list[1].ID); err != nil {
		t.Fatalf("DeleteAbsence returned error: %v", err)
	}
	if err := f.svc.DeleteAbsence(ctx, list[1].ID); !errors.Is(err, ErrAbsenceNotFound) {
		t.Fatalf("expected ErrAbsenceNotFound, got %v", err)
	}
}
