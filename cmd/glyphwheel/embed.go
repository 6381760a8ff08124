package main

import (
	"embed"
	"io/fs"

	"github.com/lazypower/glyphwheel/internal/server"
)

//go:embed all:ui
var uiDist embed.FS

func init() {
	sub, err := fs.Sub(uiDist, "ui")
	if err != nil {
		return
	}
	server.SetUI(sub)
}
