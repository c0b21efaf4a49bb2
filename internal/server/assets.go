package server

import (
	"io/fs"
	"net/http"
)

// handleAssets serves the embedded stylesheet and images. Directory
// listings are not exposed.
func handleAssets(files fs.FS) http.Handler {
	fileServer := http.StripPrefix("/assets", http.FileServerFS(files))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/assets" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(w, r)
	})
}
