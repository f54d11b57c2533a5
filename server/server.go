// Package server contains the single HTTP utility shared across the
// control surface: serving a file on disk as an HTTP response.
package server

import (
	"net/http"
	"os"
	"path/filepath"
)

// ReplyWithFile serves fn (resolved under fldr) as the HTTP response body,
// setting headers from the file's stat info.
func ReplyWithFile(w http.ResponseWriter, r *http.Request, fn, fldr string) {
	filePath, err := filepath.Abs(filepath.Join(fldr, fn))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		http.Error(w, "source file missing: "+filePath, http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, fn, stat.ModTime(), f)
}
