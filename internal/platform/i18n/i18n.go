package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/ogurasousui/ogs-worktime/internal/core/worktime"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

// Translator は埋め込みのロケールファイルからメッセージを翻訳します。
type Translator struct {
	bundle        *i18n.Bundle
	defaultLocale string
}

// New はすべてのロケールファイルを読み込んだ Translator を生成します。
func New(defaultLocale string) (*Translator, error) {
	if defaultLocale == "" {
		defaultLocale = language.English.String()
	}
	if _, err := language.Parse(defaultLocale); err != nil {
		return nil, fmt.Errorf("i18n: default locale %q: %w", defaultLocale, err)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", e.Name(), err)
		}
	}

	return &Translator{bundle: bundle, defaultLocale: defaultLocale}, nil
}

// Languages は読み込まれている言語タグを返します。
func (t *Translator) Languages() []language.Tag {
	return t.bundle.LanguageTags()
}

// WithLocale はロケール (Accept-Language 形式も可) を持つコンテキストを返します。
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ctxKey{}, locale)
}

// LocaleFromContext はコンテキストのロケールを返します。未設定の場合は空文字です。
func LocaleFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

// Warning は勤怠警告をコンテキストのロケールで表示します。翻訳がない場合は既定の英語メッセージです。
func (t *Translator) Warning(ctx context.Context, w worktime.Warning) string {
	msg, err := t.localize(ctx, "warning."+string(w.Code))
	if err != nil && msg == "" {
		return w.Message
	}
	return msg
}

// Warnings は Warning をまとめて翻訳します。
func (t *Translator) Warnings(ctx context.Context, warnings []worktime.Warning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, t.Warning(ctx, w))
	}
	return out
}

func (t *Translator) localize(ctx context.Context, messageID string) (string, error) {
	langs := []string{t.defaultLocale}
	if locale := LocaleFromContext(ctx); locale != "" {
		langs = append([]string{locale}, langs...)
	}
	l := i18n.NewLocalizer(t.bundle, langs...)

	return l.Localize(&i18n.LocalizeConfig{MessageID: messageID})
}
