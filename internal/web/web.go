// Package web はブラウザ向けクライアント（静的SPA）を埋め込みで配信する。
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static/*
var staticFS embed.FS

// Prefix はクライアントを配信するURLパス。
const Prefix = "/app/"

// Handler は埋め込みの静的ファイルを配信するハンドラーを返す。
// 存在しないパス（/app/signin など画面のパス）にはindex.htmlを返し、
// 画面の切り替えはクライアント側で行う。
func Handler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// embedのパスはビルド時に確定しているため到達しない
		panic(err)
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.StripPrefix(strings.TrimSuffix(Prefix, "/"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" || !exists(sub, name) {
			serveIndex(w, sub)
			return
		}
		fileServer.ServeHTTP(w, r)
	}))
}

func exists(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}

func serveIndex(w http.ResponseWriter, fsys fs.FS) {
	b, err := fs.ReadFile(fsys, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
