package i18n

import "net/http"

// Middleware negotiates the reply language from Accept-Language against the
// loaded catalogs, falling back to lang. The choice is stored in the request
// context and echoed as Content-Language.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			chosen := lang
			if accept := r.Header.Get("Accept-Language"); accept != "" {
				chosen = Negotiate(accept)
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(chosen, lang))
			ctx = WithLanguage(ctx, chosen)
			w.Header().Set("Content-Language", chosen)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
