package server

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed web
var webAssets embed.FS

// uiHandler serves the bundled file-manager UI. Only mounted in production
// mode; during development the UI is served by its own tooling.
func uiHandler() http.Handler {
	sub, err := fs.Sub(webAssets, "web")
	if err != nil {
		// The subtree is embedded at build time, so this cannot fail at
		// runtime with a correct build.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
