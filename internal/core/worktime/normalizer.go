package worktime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Record はデータソースから受け取った生のレコードです。
// JSON / BSON / SQL 行のいずれから組み立てても構いません。キーは camelCase と snake_case の両方を受け付けます。
type Record map[string]any

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// Normalize は生レコードを正規形の WorkSession に変換します。
// 必須項目の欠落は検証しません。null と欠落はどちらも正規形の省略値になります。
func Normalize(raw Record) WorkSession {
	return WorkSession{
		ID:             toID(raw.get("id")),
		StaffID:        toID(raw.get("staffId")),
		Date:           toDate(raw.get("date")),
		Status:         Status(toString(raw.get("status"))),
		CheckInTime:    toInstant(raw.get("checkInTime")),
		CheckOutTime:   toOptionalInstant(raw.get("checkOutTime")),
		BreakMinutes:   toInt(raw.get("breakMinutes")),
		AutoCheckedOut: toBool(raw.get("autoCheckedOut")),
		Notes:          toString(raw.get("notes")),
		CreatedBy:      toID(raw.get("createdBy")),
		UpdatedBy:      toOptionalID(raw.get("updatedBy")),
		CreatedAt:      toInstant(raw.get("createdAt")),
		UpdatedAt:      toInstant(raw.get("updatedAt")),
	}
}

// NormalizeJSON は JSON オブジェクトを WorkSession に変換します。JSON 自体が壊れている場合のみエラーを返します。
func NormalizeJSON(data []byte) (WorkSession, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw Record
	if err := dec.Decode(&raw); err != nil {
		return WorkSession{}, fmt.Errorf("worktime: decode session: %w", err)
	}
	return Normalize(raw), nil
}

// NormalizeBreak は生レコードを WorkSessionBreak に変換します。
func NormalizeBreak(raw Record) WorkSessionBreak {
	return WorkSessionBreak{
		ID:              toID(raw.get("id")),
		SessionID:       toID(raw.get("sessionId")),
		StartedAt:       toInstant(raw.get("startedAt")),
		EndedAt:         toOptionalInstant(raw.get("endedAt")),
		DurationMinutes: toInt(raw.get("durationMinutes")),
	}
}

// NormalizeAbsence は生レコードを StaffAbsence に変換します。
func NormalizeAbsence(raw Record) StaffAbsence {
	note := raw.get("note")
	if note == nil {
		note = raw.get("notes")
	}
	return StaffAbsence{
		ID:           toID(raw.get("id")),
		StaffID:      toID(raw.get("staffId")),
		DateStart:    toDate(raw.get("dateStart")),
		DateEnd:      toDate(raw.get("dateEnd")),
		AbsenceType:  AbsenceType(toString(raw.get("absenceType"))),
		HalfDay:      toBool(raw.get("halfDay")),
		Status:       AbsenceStatus(toString(raw.get("status"))),
		ApprovedBy:   toOptionalID(raw.get("approvedBy")),
		ApprovedAt:   toOptionalInstant(raw.get("approvedAt")),
		DurationDays: toFloat(raw.get("durationDays")),
		Note:         toString(note),
		CreatedAt:    toInstant(raw.get("createdAt")),
		UpdatedAt:    toInstant(raw.get("updatedAt")),
	}
}

// Record は正規形の camelCase レコードを返します。Normalize(s.Record()) は s と一致します。
func (s WorkSession) Record() Record {
	return Record{
		"id":             s.ID,
		"staffId":        s.StaffID,
		"date":           s.Date,
		"status":         string(s.Status),
		"checkInTime":    formatInstant(s.CheckInTime),
		"checkOutTime":   formatOptionalInstant(s.CheckOutTime),
		"breakMinutes":   s.BreakMinutes,
		"autoCheckedOut": s.AutoCheckedOut,
		"notes":          s.Notes,
		"createdBy":      s.CreatedBy,
		"updatedBy":      optionalString(s.UpdatedBy),
		"createdAt":      formatInstant(s.CreatedAt),
		"updatedAt":      formatInstant(s.UpdatedAt),
	}
}

// Record は正規形の camelCase レコードを返します。
func (b WorkSessionBreak) Record() Record {
	return Record{
		"id":              b.ID,
		"sessionId":       b.SessionID,
		"startedAt":       formatInstant(b.StartedAt),
		"endedAt":         formatOptionalInstant(b.EndedAt),
		"durationMinutes": b.DurationMinutes,
	}
}

// Record は正規形の camelCase レコードを返します。
func (a StaffAbsence) Record() Record {
	return Record{
		"id":           a.ID,
		"staffId":      a.StaffID,
		"dateStart":    a.DateStart,
		"dateEnd":      a.DateEnd,
		"absenceType":  string(a.AbsenceType),
		"halfDay":      a.HalfDay,
		"status":       string(a.Status),
		"approvedBy":   optionalString(a.ApprovedBy),
		"approvedAt":   formatOptionalInstant(a.ApprovedAt),
		"durationDays": a.DurationDays,
		"note":         a.Note,
		"createdAt":    formatInstant(a.CreatedAt),
		"updatedAt":    formatInstant(a.UpdatedAt),
	}
}

func (r Record) get(key string) any {
	if v, ok := r[key]; ok {
		return v
	}
	if v, ok := r[snakeCase(key)]; ok {
		return v
	}
	return nil
}

func snakeCase(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toID(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func toOptionalID(v any) *string {
	if v == nil {
		return nil
	}
	if p, ok := v.(*string); ok {
		if p == nil {
			return nil
		}
		v = *p
	}
	id := toID(v)
	return &id
}

func toDate(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		date, _, _ := strings.Cut(val, "T")
		return date
	case time.Time:
		return val.Format(time.DateOnly)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.Format(time.DateOnly)
	default:
		return toString(val)
	}
}

func toInstant(v any) time.Time {
	switch val := v.(type) {
	case string:
		t, _ := parseInstant(val)
		return t
	case time.Time:
		return val.UTC()
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return val.UTC()
	default:
		return time.Time{}
	}
}

func toOptionalInstant(v any) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
	case *time.Time:
		if val == nil {
			return nil
		}
	}
	t := toInstant(v)
	return &t
}

func parseInstant(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func toInt(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int32:
		return int(val)
	case int64:
		return int(val)
	case uint:
		return int(val)
	case uint32:
		return int(val)
	case uint64:
		return int(val)
	case float32:
		return int(val)
	case float64:
		return int(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return int(n)
		}
		f, _ := val.Float64()
		return int(f)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(val))
		return n
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f
	default:
		return float64(toInt(val))
	}
}

func toBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(val))
		return b
	case nil:
		return false
	default:
		return toFloat(val) != 0
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	default:
		return fmt.Sprint(val)
	}
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalInstant(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatInstant(*t)
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
