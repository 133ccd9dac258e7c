package staff

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

// Service はスタッフに関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase はスタッフユースケースの公開インターフェースです。
type UseCase interface {
	CreateStaff(ctx context.Context, in CreateStaffInput) (*Staff, error)
	GetStaff(ctx context.Context, in GetStaffInput) (*Staff, error)
	ListStaff(ctx context.Context, in ListStaffInput) (*ListStaffResult, error)
	UpdateStaff(ctx context.Context, in UpdateStaffInput) (*Staff, error)
	DeleteStaff(ctx context.Context, in DeleteStaffInput) error
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// CreateStaffInput はスタッフ登録時の入力です。
type CreateStaffInput struct {
	FirstName string
	LastName  string
	Email     *string
	Role      Role
	Status    *Status
}

// UpdateStaffInput はスタッフ更新時の入力です。EmailSet が true で Email が nil の場合はメールアドレスを削除します。
type UpdateStaffInput struct {
	ID        string
	FirstName *string
	LastName  *string
	Email     *string
	EmailSet  bool
	Role      *Role
	Status    *Status
}

// DeleteStaffInput はスタッフ削除時の入力です。
type DeleteStaffInput struct {
	ID string
}

// GetStaffInput はスタッフ取得時の入力です。
type GetStaffInput struct {
	ID string
}

// ListStaffInput は一覧取得時の入力です。
type ListStaffInput struct {
	PageSize  int
	PageToken string
	Status    *Status
	Role      *Role
}

// ListStaffResult は一覧取得結果を表します。
type ListStaffResult struct {
	Staff         []*Staff
	NextPageToken string
}

// CreateStaff は新しいスタッフを登録します。
func (s *Service) CreateStaff(ctx context.Context, in CreateStaffInput) (*Staff, error) {
	firstName, err := normalizeName(in.FirstName, ErrInvalidFirstName)
	if err != nil {
		return nil, err
	}

	lastName, err := normalizeName(in.LastName, ErrInvalidLastName)
	if err != nil {
		return nil, err
	}

	email, err := normalizeOptionalEmail(in.Email)
	if err != nil {
		return nil, err
	}

	if !isValidRole(in.Role) {
		return nil, ErrInvalidRole
	}

	status := StatusActive
	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		status = *in.Status
	}

	var created *Staff
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if email != nil {
			if err := s.ensureEmailNotExists(txCtx, *email, ""); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		result, err := s.repo.Create(txCtx, &Staff{
			FirstName: firstName,
			LastName:  lastName,
			Email:     email,
			Role:      in.Role,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
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

// UpdateStaff はスタッフ情報を更新します。
func (s *Service) UpdateStaff(ctx context.Context, in UpdateStaffInput) (*Staff, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var updated *Staff
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}

		if in.FirstName != nil {
			name, err := normalizeName(*in.FirstName, ErrInvalidFirstName)
			if err != nil {
				return err
			}
			existing.FirstName = name
		}

		if in.LastName != nil {
			name, err := normalizeName(*in.LastName, ErrInvalidLastName)
			if err != nil {
				return err
			}
			existing.LastName = name
		}

		if in.EmailSet {
			email, err := normalizeOptionalEmail(in.Email)
			if err != nil {
				return err
			}
			if email != nil {
				if err := s.ensureEmailNotExists(txCtx, *email, existing.ID); err != nil {
					return err
				}
			}
			existing.Email = email
		}

		if in.Role != nil {
			if !isValidRole(*in.Role) {
				return ErrInvalidRole
			}
			existing.Role = *in.Role
		}

		if in.Status != nil {
			if !isValidStatus(*in.Status) {
				return ErrInvalidStatus
			}
			existing.Status = *in.Status
		}

		existing.UpdatedAt = s.clock.Now()

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}

		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteStaff はスタッフを削除します。
func (s *Service) DeleteStaff(ctx context.Context, in DeleteStaffInput) error {
	if strings.TrimSpace(in.ID) == "" {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, in.ID)
	})
}

// GetStaff はスタッフを取得します。
func (s *Service) GetStaff(ctx context.Context, in GetStaffInput) (*Staff, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *Staff
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, in.ID)
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

// ListStaff はスタッフの一覧を取得します。
func (s *Service) ListStaff(ctx context.Context, in ListStaffInput) (*ListStaffResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	filter := ListStaffFilter{Limit: limit, Offset: offset}
	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		status := *in.Status
		filter.Status = &status
	}
	if in.Role != nil {
		if !isValidRole(*in.Role) {
			return nil, ErrInvalidRole
		}
		role := *in.Role
		filter.Role = &role
	}

	var result *ListStaffResult
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		members, token, err := s.repo.List(txCtx, filter)
		if err != nil {
			return err
		}
		result = &ListStaffResult{Staff: members, NextPageToken: token}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// LookupActive は勤怠打刻が可能な在籍スタッフを返します。
func (s *Service) LookupActive(ctx context.Context, id string) (*Staff, error) {
	found, err := s.GetStaff(ctx, GetStaffInput{ID: id})
	if err != nil {
		return nil, err
	}
	if found.Status != StatusActive {
		return nil, fmt.Errorf("staff %s is %s: %w", found.ID, found.Status, ErrInvalidStatus)
	}
	return found, nil
}

func (s *Service) ensureEmailNotExists(ctx context.Context, email, selfID string) error {
	found, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrStaffNotFound) {
		return err
	}
	if found != nil && found.ID != selfID {
		return ErrEmailAlreadyExists
	}
	return nil
}

func normalizeName(raw string, invalid error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", invalid
	}
	return trimmed, nil
}

func normalizeOptionalEmail(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return nil, ErrInvalidEmail
	}

	lower := strings.ToLower(addr.Address)
	return &lower, nil
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

func isValidRole(role Role) bool {
	switch role {
	case RoleEducator, RoleGroupLead, RoleAssistant, RoleAdmin:
		return true
	default:
		return false
	}
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
