package view

import (
	"net/http"
	"strings"

	"github.com/a-h/templ"
)

// IsHTMX reports whether r was issued by htmx.
func IsHTMX(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("HX-Request"), "true")
}

// RenderPage serves fragment to htmx requests and full to everything else.
func RenderPage(w http.ResponseWriter, r *http.Request, fragment, full templ.Component) {
	if IsHTMX(r) {
		templ.Handler(fragment).ServeHTTP(w, r)
		return
	}
	templ.Handler(full).ServeHTTP(w, r)
}

// RenderStatus serves c with an explicit status code.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}
