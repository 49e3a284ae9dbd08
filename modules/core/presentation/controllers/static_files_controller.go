package controllers

import (
	"net/http"
	"strings"

	"github.com/benbjohnson/hashfs"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/pkg/application"
)

// StaticFilesController serves the embedded asset filesystems under
// /assets/. Hashed names get an immutable cache header from hashfs.
type StaticFilesController struct {
	fsInstances []*hashfs.FS
}

func NewStaticFilesController(fsInstances []*hashfs.FS) application.Controller {
	return &StaticFilesController{fsInstances: fsInstances}
}

func (s *StaticFilesController) Key() string {
	return "/assets"
}

func (s *StaticFilesController) Register(r *mux.Router) {
	servers := make([]http.Handler, len(s.fsInstances))
	for i, fsys := range s.fsInstances {
		servers[i] = hashfs.FileServer(fsys)
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		for i, fsys := range s.fsInstances {
			f, err := fsys.Open(name)
			if err != nil {
				continue
			}
			_ = f.Close()
			servers[i].ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
	r.PathPrefix("/assets/").Handler(http.StripPrefix("/assets", handler))
}
