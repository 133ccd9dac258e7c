package worktime

import "time"

// Status は勤務日の勤務形態を表します。
type Status string

const (
	StatusPresent    Status = "present"
	StatusHomeOffice Status = "home_office"
)

// IsValid は既知の勤務形態かどうかを返します。
func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusHomeOffice:
		return true
	default:
		return false
	}
}

// WorkSession はスタッフ 1 名の 1 日分の勤怠記録です。
type WorkSession struct {
	ID             string
	StaffID        string
	Date           string // YYYY-MM-DD
	Status         Status
	CheckInTime    time.Time
	CheckOutTime   *time.Time
	BreakMinutes   int
	AutoCheckedOut bool
	Notes          string
	CreatedBy      string
	UpdatedBy      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOpen はチェックアウト前のセッションであれば true を返します。
func (s WorkSession) IsOpen() bool {
	return s.CheckOutTime == nil
}

// WorkSessionBreak はセッション内の 1 回の休憩です。
type WorkSessionBreak struct {
	ID              string
	SessionID       string
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationMinutes int
}

// IsActive は休憩が終了していなければ true を返します。
func (b WorkSessionBreak) IsActive() bool {
	return b.EndedAt == nil
}

// WorkSessionHistory は派生項目を付与した WorkSession です。読み取り時に毎回計算され、永続化されません。
type WorkSessionHistory struct {
	WorkSession
	NetMinutes       *int
	IsOvertime       bool
	IsBreakCompliant bool
	Breaks           []WorkSessionBreak
	EditCount        int
}

// AbsenceType は欠勤の種別です。
type AbsenceType string

const (
	AbsenceTypeSick     AbsenceType = "sick"
	AbsenceTypeVacation AbsenceType = "vacation"
	AbsenceTypeTraining AbsenceType = "training"
	AbsenceTypeSpecial  AbsenceType = "special"
	AbsenceTypeOther    AbsenceType = "other"
)

// IsValid は既知の欠勤種別かどうかを返します。
func (t AbsenceType) IsValid() bool {
	switch t {
	case AbsenceTypeSick, AbsenceTypeVacation, AbsenceTypeTraining, AbsenceTypeSpecial, AbsenceTypeOther:
		return true
	default:
		return false
	}
}

// AbsenceStatus は欠勤申請の承認状態です。
type AbsenceStatus string

const (
	AbsenceStatusPending  AbsenceStatus = "pending"
	AbsenceStatusApproved AbsenceStatus = "approved"
	AbsenceStatusRejected AbsenceStatus = "rejected"
)

// IsValid は既知の承認状態かどうかを返します。
func (s AbsenceStatus) IsValid() bool {
	switch s {
	case AbsenceStatusPending, AbsenceStatusApproved, AbsenceStatusRejected:
		return true
	default:
		return false
	}
}

// StaffAbsence はスタッフが勤務を免除される期間です。WorkSession とは staffId 以外で結び付きません。
type StaffAbsence struct {
	ID           string
	StaffID      string
	DateStart    string
	DateEnd      string
	AbsenceType  AbsenceType
	HalfDay      bool
	Status       AbsenceStatus
	ApprovedBy   *string
	ApprovedAt   *time.Time
	DurationDays float64
	Note         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
