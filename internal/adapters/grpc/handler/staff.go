package handler

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/ogs-worktime/internal/core/staff"
)

// StaffGrpcHandler は StaffService の gRPC 実装です。
type StaffGrpcHandler struct {
	svc staff.UseCase
}

var _ StaffServer = (*StaffGrpcHandler)(nil)

// NewStaffGrpcHandler は StaffGrpcHandler を生成します。
func NewStaffGrpcHandler(svc staff.UseCase) *StaffGrpcHandler {
	return &StaffGrpcHandler{svc: svc}
}

// CreateStaff はスタッフを登録します。
func (h *StaffGrpcHandler) CreateStaff(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	var statusPtr *staff.Status
	if raw := f.optionalString("status"); raw != nil && *raw != "" {
		value := staff.Status(*raw)
		statusPtr = &value
	}

	created, err := h.svc.CreateStaff(ctx, staff.CreateStaffInput{
		FirstName: f.string("firstName"),
		LastName:  f.string("lastName"),
		Email:     f.optionalString("email"),
		Role:      staff.Role(f.string("role")),
		Status:    statusPtr,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"staff": staffMap(created)})
}

// GetStaff はスタッフを取得します。
func (h *StaffGrpcHandler) GetStaff(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	found, err := h.svc.GetStaff(ctx, staff.GetStaffInput{ID: f.string("id")})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"staff": staffMap(found)})
}

// ListStaff はスタッフの一覧を取得します。
func (h *StaffGrpcHandler) ListStaff(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	pageSize, err := f.optionalInt("pageSize")
	if err != nil {
		return nil, err
	}

	in := staff.ListStaffInput{PageToken: f.string("pageToken")}
	if pageSize != nil {
		in.PageSize = *pageSize
	}
	if raw := f.optionalString("status"); raw != nil && *raw != "" {
		value := staff.Status(*raw)
		in.Status = &value
	}
	if raw := f.optionalString("role"); raw != nil && *raw != "" {
		value := staff.Role(*raw)
		in.Role = &value
	}

	result, err := h.svc.ListStaff(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}

	members := make([]any, 0, len(result.Staff))
	for _, m := range result.Staff {
		members = append(members, staffMap(m))
	}

	return newStruct(map[string]any{
		"staff":         members,
		"nextPageToken": result.NextPageToken,
	})
}

// UpdateStaff はスタッフ情報を更新します。email に null を指定すると削除します。
func (h *StaffGrpcHandler) UpdateStaff(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	in := staff.UpdateStaffInput{
		ID:        f.string("id"),
		FirstName: f.optionalString("firstName"),
		LastName:  f.optionalString("lastName"),
		Email:     f.optionalString("email"),
		EmailSet:  f.has("email"),
	}
	if raw := f.optionalString("role"); raw != nil {
		value := staff.Role(*raw)
		in.Role = &value
	}
	if raw := f.optionalString("status"); raw != nil {
		value := staff.Status(*raw)
		in.Status = &value
	}

	updated, err := h.svc.UpdateStaff(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}

	return newStruct(map[string]any{"staff": staffMap(updated)})
}

// DeleteStaff はスタッフを削除します。
func (h *StaffGrpcHandler) DeleteStaff(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := fieldsOf(req)
	if err != nil {
		return nil, err
	}

	if err := h.svc.DeleteStaff(ctx, staff.DeleteStaffInput{ID: f.string("id")}); err != nil {
		return nil, toStatusError(err)
	}

	return &structpb.Struct{}, nil
}

func staffMap(s *staff.Staff) map[string]any {
	var email any
	if s.Email != nil {
		email = *s.Email
	}
	return map[string]any{
		"id":        s.ID,
		"firstName": s.FirstName,
		"lastName":  s.LastName,
		"fullName":  s.FullName(),
		"email":     email,
		"role":      string(s.Role),
		"status":    string(s.Status),
		"createdAt": s.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updatedAt": s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
