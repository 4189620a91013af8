// Package i18n translates user-facing messages.
//
// Catalogs are embedded JSON files, one per language. Every catalog must
// define the same message IDs as the default language so a reply never falls
// back to a raw ID halfway through a conversation.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var jsonUnmarshal = json.Unmarshal

//go:embed locales/*.json
var localeFS embed.FS

type (
	localizerKey struct{}
	languageKey  struct{}
)

var (
	bundle      *i18n.Bundle
	defaultLang language.Tag
	matcher     language.Matcher
)

// Init loads every embedded catalog with lang as the default language.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}
	b, err := loadBundle(tag, localeFS)
	if err != nil {
		return err
	}

	bundle = b
	defaultLang = tag
	matcher = language.NewMatcher(b.LanguageTags())
	return nil
}

func loadBundle(tag language.Tag, fsys fs.FS) (*i18n.Bundle, error) {
	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", jsonUnmarshal)

	entries, err := fs.ReadDir(fsys, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	ids := make(map[string][]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, "locales/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		mf, err := b.ParseMessageFileBytes(data, e.Name())
		if err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		lang := baseOf(mf.Tag)
		for _, m := range mf.Messages {
			ids[lang] = append(ids[lang], m.ID)
		}
		slog.Info("loaded locale file", "file", e.Name(), "messages", len(mf.Messages))
	}
	if err := checkCatalogs(baseOf(tag), ids); err != nil {
		return nil, err
	}
	return b, nil
}

// checkCatalogs reports a missing default catalog, or the first catalog
// missing a message the default catalog defines.
func checkCatalogs(def string, ids map[string][]string) error {
	want := ids[def]
	if len(want) == 0 {
		return fmt.Errorf("no message catalog for default language %q", def)
	}
	langs := make([]string, 0, len(ids))
	for lang := range ids {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		have := make(map[string]bool, len(ids[lang]))
		for _, id := range ids[lang] {
			have[id] = true
		}
		for _, id := range want {
			if !have[id] {
				return fmt.Errorf("locale %s: missing message %q", lang, id)
			}
		}
	}
	return nil
}

func baseOf(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// Languages returns the loaded catalog languages, default first.
func Languages() []string {
	if bundle == nil {
		return nil
	}
	tags := bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

// Negotiate picks the catalog language that best serves an Accept-Language
// header. An empty or unparseable header yields the default language.
func Negotiate(acceptLanguage string) string {
	if matcher == nil {
		return defaultLang.String()
	}
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return defaultLang.String()
	}
	_, i, conf := matcher.Match(prefs...)
	if conf == language.No {
		return defaultLang.String()
	}
	return bundle.LanguageTags()[i].String()
}

// NewLocalizer creates a localizer for the given languages in order of
// preference. Each entry may be a tag or an Accept-Language header value.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, langs...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, localizerKey{}, loc)
}

// WithLanguage records the language chosen for the request.
func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, languageKey{}, lang)
}

// Language returns the language chosen for the request, or the default.
func Language(ctx context.Context) string {
	if lang, ok := ctx.Value(languageKey{}).(string); ok && lang != "" {
		return lang
	}
	return defaultLang.String()
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(localizerKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return i18n.NewLocalizer(bundle, defaultLang.String())
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	loc := localizerFromCtx(ctx)
	s, err := loc.Localize(&i18n.LocalizeConfig{MessageID: msgID})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	loc := localizerFromCtx(ctx)
	s, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	loc := localizerFromCtx(ctx)
	s, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}
