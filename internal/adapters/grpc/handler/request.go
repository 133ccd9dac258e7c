package handler

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/ogs-worktime/internal/platform/i18n"
)

const localeHeader = "accept-language"

var errRequestRequired = status.Error(codes.InvalidArgument, "request is required")

// fields は Struct リクエストの値を型付きで読み出します。
type fields map[string]*structpb.Value

func fieldsOf(req *structpb.Struct) (fields, error) {
	if req == nil {
		return nil, errRequestRequired
	}
	return fields(req.GetFields()), nil
}

func (f fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f fields) isNull(key string) bool {
	v, ok := f[key]
	if !ok {
		return false
	}
	_, null := v.GetKind().(*structpb.Value_NullValue)
	return null
}

// string は文字列を返します。数値の ID は 10 進文字列に変換します。
func (f fields) string(key string) string {
	v, ok := f[key]
	if !ok {
		return ""
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	default:
		return ""
	}
}

// optionalString は値があればそのポインタを返します。null と未指定はどちらも nil です。
func (f fields) optionalString(key string) *string {
	if !f.has(key) || f.isNull(key) {
		return nil
	}
	value := f.string(key)
	return &value
}

func (f fields) bool(key string) bool {
	return f[key].GetBoolValue()
}

func (f fields) optionalInt(key string) (*int, error) {
	if !f.has(key) || f.isNull(key) {
		return nil, nil
	}
	var n float64
	switch kind := f[key].GetKind().(type) {
	case *structpb.Value_NumberValue:
		n = kind.NumberValue
	case *structpb.Value_StringValue:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(kind.StringValue), 64)
		if err != nil {
			return nil, invalidField(key, "must be an integer")
		}
		n = parsed
	default:
		return nil, invalidField(key, "must be an integer")
	}
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return nil, invalidField(key, "must be an integer")
	}
	value := int(n)
	return &value, nil
}

// optionalTime は RFC3339 の時刻を読み出します。set は値または null が指定されたかを表します。
func (f fields) optionalTime(key string) (value *time.Time, set bool, err error) {
	if !f.has(key) {
		return nil, false, nil
	}
	if f.isNull(key) {
		return nil, true, nil
	}
	raw := strings.TrimSpace(f.string(key))
	if raw == "" {
		return nil, true, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, true, invalidField(key, "must be an RFC3339 timestamp")
	}
	return &parsed, true, nil
}

func invalidField(key, reason string) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf("%s: %s", key, reason))
}

// withLocale は accept-language メタデータを翻訳用のロケールとしてコンテキストに載せます。
func withLocale(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	if values := md.Get(localeHeader); len(values) > 0 && values[0] != "" {
		return i18n.WithLocale(ctx, values[0])
	}
	return ctx
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
