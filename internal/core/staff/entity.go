package staff

import "time"

// Status はスタッフの在籍状態を表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Role はスタッフの職種を表します。
type Role string

const (
	RoleEducator  Role = "educator"
	RoleGroupLead Role = "group_lead"
	RoleAssistant Role = "assistant"
	RoleAdmin     Role = "admin"
)

// Staff はスタッフエンティティです。
type Staff struct {
	ID        string
	FirstName string
	LastName  string
	Email     *string
	Role      Role
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName は表示用の氏名を返します。
func (s *Staff) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
