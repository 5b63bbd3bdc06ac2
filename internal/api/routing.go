package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"git.sr.ht/~jakintosh/keycheck/internal/logging"
)

func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(logging.Middleware(a.log))

	r.HandleFunc("/healthz", a.Health()).Methods(http.MethodGet)
	r.HandleFunc("/checks", a.Checks()).Methods(http.MethodGet)
	r.HandleFunc("/ping", a.Ping()).Methods(http.MethodGet)

	// check routes come from the catalog, which can change at runtime
	r.MatcherFunc(a.isCheckPath).
		Methods(http.MethodPost).
		HandlerFunc(a.Check())

	return r
}

func (a *API) isCheckPath(r *http.Request, _ *mux.RouteMatch) bool {
	_, err := a.service.Catalog().ByPath(r.URL.Path)
	return err == nil
}

func (a *API) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnJson(map[string]string{"status": "ok"}, w)
	}
}
