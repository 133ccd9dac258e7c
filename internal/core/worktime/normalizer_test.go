package worktime

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestNormalizeJSON_CoercesSourceShape(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"id": 42,
		"staff_id": 7,
		"date": "2026-01-15T00:00:00.000Z",
		"status": "home_office",
		"check_in_time": "2026-01-15T08:00:00+01:00",
		"check_out_time": null,
		"break_minutes": 15,
		"notes": null,
		"created_by": 3,
		"updated_by": null,
		"created_at": "2026-01-15T07:00:01Z",
		"updated_at": "2026-01-15T07:00:01Z"
	}`)

	s, err := NormalizeJSON(payload)
	if err != nil {
		t.Fatalf("NormalizeJSON returned error: %v", err)
	}

	if s.ID != "42" || s.StaffID != "7" || s.CreatedBy != "3" {
		t.Fatalf("identifiers not coerced: %+v", s)
	}
	if s.Date != "2026-01-15" {
		t.Fatalf("expected date prefix, got %q", s.Date)
	}
	if s.Status != StatusHomeOffice {
		t.Fatalf("unexpected status %q", s.Status)
	}
	if !s.CheckInTime.Equal(time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected check-in %v", s.CheckInTime)
	}
	if s.CheckOutTime != nil {
		t.Fatalf("expected nil check-out, got %v", s.CheckOutTime)
	}
	if s.BreakMinutes != 15 {
		t.Fatalf("expected 15 break minutes, got %d", s.BreakMinutes)
	}
	if s.AutoCheckedOut {
		t.Fatalf("autoCheckedOut should default to false")
	}
	if s.Notes != "" || s.UpdatedBy != nil {
		t.Fatalf("null optional fields should collapse, got notes=%q updatedBy=%v", s.Notes, s.UpdatedBy)
	}
}

func TestNormalize_NullAndAbsentCollapse(t *testing.T) {
	t.Parallel()

	withNull := Normalize(Record{"id": "1", "staffId": "2", "date": "2026-01-15", "status": "present", "checkInTime": "2026-01-15T08:00:00Z", "breakMinutes": 0, "checkOutTime": nil, "notes": nil, "updatedBy": nil})
	absent := Normalize(Record{"id": "1", "staffId": "2", "date": "2026-01-15", "status": "present", "checkInTime": "2026-01-15T08:00:00Z", "breakMinutes": 0})

	if !reflect.DeepEqual(withNull, absent) {
		t.Fatalf("null and absent should normalize identically:\n%+v\n%+v", withNull, absent)
	}
}

func TestNormalize_DateWithoutSeparatorPassesThrough(t *testing.T) {
	t.Parallel()

	s := Normalize(Record{"date": "15.01.2026"})
	if s.Date != "15.01.2026" {
		t.Fatalf("expected date unchanged, got %q", s.Date)
	}

	fromTime := Normalize(Record{"date": time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)})
	if fromTime.Date != "2026-01-15" {
		t.Fatalf("expected date from time.Time, got %q", fromTime.Date)
	}
}

func TestNormalize_IdentifierRepresentations(t *testing.T) {
	t.Parallel()

	cases := []any{int64(9), int32(9), 9, float64(9), json.Number("9"), "9", " 9 ", uint64(9)}
	for _, id := range cases {
		if got := Normalize(Record{"id": id}).ID; got != "9" {
			t.Errorf("id %T(%v) normalized to %q", id, id, got)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	out := time.Date(2026, 1, 15, 16, 30, 0, 123, time.UTC)
	updatedBy := "5"
	canonical := WorkSession{
		ID:             "11",
		StaffID:        "7",
		Date:           "2026-01-15",
		Status:         StatusPresent,
		CheckInTime:    time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC),
		CheckOutTime:   &out,
		BreakMinutes:   45,
		AutoCheckedOut: true,
		Notes:          "Ausflug",
		CreatedBy:      "3",
		UpdatedBy:      &updatedBy,
		CreatedAt:      time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2026, 1, 15, 16, 30, 0, 0, time.UTC),
	}

	once := Normalize(canonical.Record())
	if !reflect.DeepEqual(once, canonical) {
		t.Fatalf("normalizing canonical session changed it:\nwant %+v\ngot  %+v", canonical, once)
	}

	twice := Normalize(once.Record())
	if !reflect.DeepEqual(twice, once) {
		t.Fatalf("re-normalization is not stable")
	}
}

func TestNormalize_InvalidInstantDegrades(t *testing.T) {
	t.Parallel()

	s := Normalize(Record{"checkInTime": "yesterday", "checkOutTime": "later"})
	if !s.CheckInTime.IsZero() {
		t.Fatalf("expected zero check-in, got %v", s.CheckInTime)
	}
	if NetMinutes(s.CheckInTime, s.CheckOutTime, 0) != nil {
		t.Fatalf("expected undetermined net minutes")
	}
}

func TestNormalizeJSON_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := NormalizeJSON([]byte(`{"id": `)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestNormalizeBreakAndAbsence(t *testing.T) {
	t.Parallel()

	b := NormalizeBreak(Record{"id": 1, "session_id": 42, "started_at": "2026-01-15T12:00:00Z", "ended_at": nil, "duration_minutes": json.Number("0")})
	if b.ID != "1" || b.SessionID != "42" || !b.IsActive() {
		t.Fatalf("unexpected break %+v", b)
	}

	a := NormalizeAbsence(Record{
		"id":            int64(5),
		"staff_id":      int64(7),
		"date_start":    "2026-02-02T00:00:00Z",
		"date_end":      "2026-02-06",
		"absence_type":  "vacation",
		"half_day":      false,
		"status":        "approved",
		"approved_by":   int64(1),
		"approved_at":   "2026-01-20T10:00:00Z",
		"duration_days": 5.0,
		"notes":         "Urlaub",
	})
	if a.ID != "5" || a.StaffID != "7" || a.DateStart != "2026-02-02" || a.DateEnd != "2026-02-06" {
		t.Fatalf("unexpected absence %+v", a)
	}
	if a.ApprovedBy == nil || *a.ApprovedBy != "1" || a.ApprovedAt == nil {
		t.Fatalf("approval fields not normalized: %+v", a)
	}
	if a.DurationDays != 5 || a.Note != "Urlaub" || a.AbsenceType != AbsenceTypeVacation {
		t.Fatalf("unexpected absence values %+v", a)
	}
}
