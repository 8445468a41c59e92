package i18n

import (
	"net/http"
	"strings"
)

// Middleware picks the request localizer from the lang query parameter and
// the Accept-Language header, falling back to the default language.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var langs []string
		if q := strings.TrimSpace(r.URL.Query().Get("lang")); q != "" {
			langs = append(langs, q)
		}
		if h := r.Header.Get("Accept-Language"); h != "" {
			langs = append(langs, h)
		}
		ctx := WithLocalizer(r.Context(), NewLocalizer(langs...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
