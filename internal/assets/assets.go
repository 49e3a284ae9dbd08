// Package assets embeds the stylesheet and script shared by every page.
package assets

import (
	"embed"
	"io/fs"

	"github.com/benbjohnson/hashfs"
)

//go:embed static/*
var static embed.FS

// FS serves content-hashed names such as app-<sha>.css.
var FS = hashfs.NewFS(mustSub(static, "static"))

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
