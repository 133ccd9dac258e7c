package staff

import "context"

// Repository はスタッフ永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, s *Staff) (*Staff, error)
	Update(ctx context.Context, s *Staff) (*Staff, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Staff, error)
	FindByEmail(ctx context.Context, email string) (*Staff, error)
	List(ctx context.Context, filter ListStaffFilter) ([]*Staff, string, error)
}

// ListStaffFilter は一覧取得用フィルタです。
type ListStaffFilter struct {
	Status *Status
	Role   *Role
	Limit  int
	Offset int
}
