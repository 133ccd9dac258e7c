package handler

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/ogs-worktime/internal/core/timetracking"
	"github.com/ogurasousui/ogs-worktime/internal/core/worktime"
)

// WarningTranslator は勤怠警告をリクエストのロケールで表示します。
type WarningTranslator interface {
	Warnings(ctx context.Context, warnings []worktime.Warning) []string
}

type defaultMessages struct{}

func (defaultMessages) Warnings(_ context.Context, warnings []worktime.Warning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Message)
	}
	return out
}

// TimeTrackingGrpcHandler は TimeTrackingService の gRPC 実装です。
type TimeTrackingGrpcHandler struct {
	svc        timetracking.UseCase
	translator WarningTranslator
}

var _ TimeTrackingServer = (*TimeTrackingGrpcHandler)(nil)

// NewTimeTrackingGrpcHandler は TimeTrackingGrpcHandler を生成します。translator が nil の場合は英語の既定文言です。
func NewTimeTrackingGrpcHandler(svc timetracking.UseCase, translator WarningTranslator) *TimeTrackingGrpcHandler {
	if translator == nil {
		translator = defaultMessages{}
	}
	return &TimeTrackingGrpcHandler{svc: svc, translator: translator}
}

// CheckIn は出勤を打刻します。
func (h *TimeTrackingGrpcHandler) CheckIn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	session, err := h.svc.CheckIn(ctx, timetracking.CheckInInput{
		StaffID: f.string("staffId"),
		Status:  worktime.Status(f.string("status")),
		Notes:   f.string("notes"),
		ActorID: f.string("actorId"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"session": map[string]any(session.Record())})
}

// StartBreak は休憩を開始します。
func (h *TimeTrackingGrpcHandler) StartBreak(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	b, err := h.svc.StartBreak(ctx, staffInput(f))
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"break": map[string]any(b.Record())})
}

// EndBreak は休憩を終了します。
func (h *TimeTrackingGrpcHandler) EndBreak(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	b, err := h.svc.EndBreak(ctx, staffInput(f))
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"break": map[string]any(b.Record())})
}

// CheckOut は退勤を打刻します。
func (h *TimeTrackingGrpcHandler) CheckOut(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	view, err := h.svc.CheckOut(ctx, staffInput(f))
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"session": h.viewMap(withLocale(ctx), view)})
}

// CorrectSession は管理者による勤怠修正を行います。
// checkOutTime に null を指定するとチェックアウトを取り消します。
func (h *TimeTrackingGrpcHandler) CorrectSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	checkIn, _, err := f.optionalTime("checkInTime")
	if err != nil {
		return nil, err
	}
	checkOut, checkOutSet, err := f.optionalTime("checkOutTime")
	if err != nil {
		return nil, err
	}
	breakMinutes, err := f.optionalInt("breakMinutes")
	if err != nil {
		return nil, err
	}

	var statusPtr *worktime.Status
	if raw := f.optionalString("status"); raw != nil {
		value := worktime.Status(*raw)
		statusPtr = &value
	}

	view, err := h.svc.CorrectSession(ctx, timetracking.CorrectSessionInput{
		ID:              f.string("id"),
		ActorID:         f.string("actorId"),
		Reason:          f.string("reason"),
		CheckInTime:     checkIn,
		CheckOutTime:    checkOut,
		CheckOutTimeSet: checkOutSet,
		BreakMinutes:    breakMinutes,
		Status:          statusPtr,
		Notes:           f.optionalString("notes"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"session": h.viewMap(withLocale(ctx), view)})
}

// ListCorrections はセッションの修正履歴を返します。
func (h *TimeTrackingGrpcHandler) ListCorrections(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	edits, err := h.svc.ListCorrections(ctx, f.string("sessionId"))
	if err != nil {
		return nil, toStatusError(err)
	}

	out := make([]any, 0, len(edits))
	for _, e := range edits {
		out = append(out, editMap(e))
	}
	return newStruct(map[string]any{"corrections": out})
}

// GetSession は派生項目付きのセッションを返します。
func (h *TimeTrackingGrpcHandler) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	view, err := h.svc.GetSession(ctx, f.string("id"))
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"session": h.viewMap(withLocale(ctx), view)})
}

// GetCurrentSession は本日または未チェックアウトのセッションを返します。
func (h *TimeTrackingGrpcHandler) GetCurrentSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	view, err := h.svc.GetCurrentSession(ctx, f.string("staffId"))
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"session": h.viewMap(withLocale(ctx), view)})
}

// ListHistory は期間内のセッション履歴を返します。
func (h *TimeTrackingGrpcHandler) ListHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	views, err := h.svc.ListHistory(ctx, timetracking.ListHistoryInput{
		StaffID: f.string("staffId"),
		From:    f.string("from"),
		To:      f.string("to"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"sessions": h.viewList(withLocale(ctx), views)})
}

// GetWeekSummary は ISO 週単位の勤務集計を返します。
func (h *TimeTrackingGrpcHandler) GetWeekSummary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	summary, err := h.svc.GetWeekSummary(ctx, timetracking.WeekSummaryInput{
		StaffID: f.string("staffId"),
		Date:    f.string("date"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	ctx = withLocale(ctx)
	days := make([]any, 0, len(summary.Days))
	for _, d := range summary.Days {
		days = append(days, map[string]any{
			"date":       d.Date,
			"netMinutes": d.NetMinutes,
			"sessions":   h.viewList(ctx, d.Sessions),
			"absences":   absenceList(d.Absences),
		})
	}

	return newStruct(map[string]any{
		"year":       summary.Year,
		"week":       summary.Week,
		"netMinutes": summary.NetMinutes,
		"warnings":   summary.Warnings,
		"days":       days,
	})
}

// CreateAbsence は欠勤を申請します。
func (h *TimeTrackingGrpcHandler) CreateAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	absence, err := h.svc.CreateAbsence(ctx, timetracking.CreateAbsenceInput{
		StaffID:     f.string("staffId"),
		DateStart:   f.string("dateStart"),
		DateEnd:     f.string("dateEnd"),
		AbsenceType: worktime.AbsenceType(f.string("absenceType")),
		HalfDay:     f.bool("halfDay"),
		Note:        f.string("note"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"absence": map[string]any(absence.Record())})
}

// ApproveAbsence は欠勤申請を承認します。
func (h *TimeTrackingGrpcHandler) ApproveAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.decideAbsence(ctx, req, h.svc.ApproveAbsence)
}

// RejectAbsence は欠勤申請を却下します。
func (h *TimeTrackingGrpcHandler) RejectAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.decideAbsence(ctx, req, h.svc.RejectAbsence)
}

// ListAbsences は期間と重なる欠勤を返します。
func (h *TimeTrackingGrpcHandler) ListAbsences(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	var statusPtr *worktime.AbsenceStatus
	if raw := f.optionalString("status"); raw != nil && *raw != "" {
		value := worktime.AbsenceStatus(*raw)
		statusPtr = &value
	}

	absences, err := h.svc.ListAbsences(ctx, timetracking.ListAbsencesInput{
		StaffID: f.string("staffId"),
		From:    f.string("from"),
		To:      f.string("to"),
		Status:  statusPtr,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"absences": absenceList(absences)})
}

// DeleteAbsence は欠勤を削除します。
func (h *TimeTrackingGrpcHandler) DeleteAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	if err := h.svc.DeleteAbsence(ctx, f.string("id")); err != nil {
		return nil, toStatusError(err)
	}

	return &structpb.Struct{}, nil
}

func (h *TimeTrackingGrpcHandler) decideAbsence(
	ctx context.Context,
	req *structpb.Struct,
	decide func(context.Context, timetracking.DecideAbsenceInput) (*worktime.StaffAbsence, error),
) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	absence, err := decide(ctx, timetracking.DecideAbsenceInput{
		ID:      f.string("id"),
		ActorID: f.string("actorId"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"absence": map[string]any(absence.Record())})
}

func (h *TimeTrackingGrpcHandler) viewMap(ctx context.Context, view *timetracking.SessionView) map[string]any {
	hist := view.History
	out := map[string]any(hist.WorkSession.Record())

	if hist.NetMinutes != nil {
		out["netMinutes"] = *hist.NetMinutes
	} else {
		out["netMinutes"] = nil
	}
	out["isOvertime"] = hist.IsOvertime
	out["isBreakCompliant"] = hist.IsBreakCompliant
	out["editCount"] = hist.EditCount

	breaks := make([]any, 0, len(hist.Breaks))
	for _, b := range hist.Breaks {
		breaks = append(breaks, map[string]any(b.Record()))
	}
	out["breaks"] = breaks

	warningCodes := make([]any, 0, len(view.Warnings))
	for _, w := range view.Warnings {
		warningCodes = append(warningCodes, string(w.Code))
	}
	messages := make([]any, 0, len(view.Warnings))
	for _, m := range h.translator.Warnings(ctx, view.Warnings) {
		messages = append(messages, m)
	}
	out["warningCodes"] = warningCodes
	out["warnings"] = messages

	return out
}

func (h *TimeTrackingGrpcHandler) viewList(ctx context.Context, views []timetracking.SessionView) []any {
	out := make([]any, 0, len(views))
	for i := range views {
		out = append(out, h.viewMap(ctx, &views[i]))
	}
	return out
}

func staffInput(f fields) timetracking.StaffInput {
	return timetracking.StaffInput{
		StaffID: f.string("staffId"),
		ActorID: f.string("actorId"),
	}
}

func absenceList(absences []*worktime.StaffAbsence) []any {
	out := make([]any, 0, len(absences))
	for _, a := range absences {
		out = append(out, map[string]any(a.Record()))
	}
	return out
}

func editMap(e *timetracking.SessionEdit) map[string]any {
	changes := make([]any, 0, len(e.Changes))
	for _, c := range e.Changes {
		changes = append(changes, map[string]any{
			"field":  c.Field,
			"before": c.Before,
			"after":  c.After,
		})
	}
	return map[string]any{
		"id":        e.ID,
		"sessionId": e.SessionID,
		"staffId":   e.StaffID,
		"editedBy":  e.EditedBy,
		"reason":    e.Reason,
		"changes":   changes,
		"editedAt":  e.EditedAt.UTC().Format(time.RFC3339Nano),
	}
}
