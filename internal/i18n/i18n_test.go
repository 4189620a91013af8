package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"golang.org/x/text/language"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NoMessage")
	if got != "No message provided." {
		t.Errorf("T(NoMessage) = %q, want 'No message provided.'", got)
	}

	got = T(ctx, "SessionResetOK")
	if got != "Session reset successful." {
		t.Errorf("T(SessionResetOK) = %q, want 'Session reset successful.'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "SessionNotFound")
	if got != "Сессия не найдена." {
		t.Errorf("T(SessionNotFound) = %q, want 'Сессия не найдена.'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "SessionsActive", 1)
	if got1 != "1 active session" {
		t.Errorf("Tp(SessionsActive, 1) = %q, want '1 active session'", got1)
	}

	got5 := Tp(ctx, "SessionsActive", 5)
	if got5 != "5 active sessions" {
		t.Errorf("Tp(SessionsActive, 5) = %q, want '5 active sessions'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "SessionsActive", map[string]any{"Count": 3})
	if got != "3 active sessions" {
		t.Errorf("Td(SessionsActive) = %q, want '3 active sessions'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewarePrefersAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		accept string
		want   string
		lang   string
	}{
		{"header wins", "ru-RU,ru;q=0.9", "Сессия не найдена.", "ru"},
		{"fallback", "", "Session not found.", "en"},
		{"unsupported header", "fr", "Session not found.", "en"},
		{"weighted preference", "fr;q=1, ru;q=0.8, en;q=0.5", "Сессия не найдена.", "ru"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got, lang string
			h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = T(r.Context(), "SessionNotFound")
				lang = Language(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if lang != tt.lang {
				t.Errorf("Language = %q, want %q", lang, tt.lang)
			}
			if cl := rec.Header().Get("Content-Language"); cl != tt.lang {
				t.Errorf("Content-Language = %q, want %q", cl, tt.lang)
			}
		})
	}
}

func TestDefaultLanguageWithoutLocalizer(t *testing.T) {
	if err := Init("ru"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = Init("en") })

	if got := T(context.Background(), "SessionNotFound"); got != "Сессия не найдена." {
		t.Errorf("T without localizer = %q, want the Russian catalog", got)
	}
	if got := Language(context.Background()); got != "ru" {
		t.Errorf("Language = %q, want ru", got)
	}
	if langs := Languages(); len(langs) == 0 || langs[0] != "ru" {
		t.Errorf("Languages = %v, want ru first", langs)
	}
}

func TestInitRejectsUnknownDefault(t *testing.T) {
	if err := Init("de"); err == nil {
		t.Error("expected error for a language without a catalog")
	}
	if err := Init("not a tag!"); err == nil {
		t.Error("expected error for an invalid tag")
	}
	if err := Init("en"); err != nil {
		t.Fatal(err)
	}
}

func TestLoadBundleChecksCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
	}{
		{
			name: "complete",
			files: fstest.MapFS{
				"locales/en.json": {Data: []byte(`{"A":"a","B":"b"}`)},
				"locales/ru.json": {Data: []byte(`{"A":"а","B":"б"}`)},
			},
		},
		{
			name: "missing message",
			files: fstest.MapFS{
				"locales/en.json": {Data: []byte(`{"A":"a","B":"b"}`)},
				"locales/ru.json": {Data: []byte(`{"A":"а"}`)},
			},
			wantErr: `locale ru: missing message "B"`,
		},
		{
			name: "no default catalog",
			files: fstest.MapFS{
				"locales/ru.json": {Data: []byte(`{"A":"а"}`)},
			},
			wantErr: "no message catalog",
		},
		{
			name: "malformed",
			files: fstest.MapFS{
				"locales/en.json": {Data: []byte(`{"A":`)},
			},
			wantErr: "parse locale file en.json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadBundle(language.English, tt.files)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("loadBundle: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
