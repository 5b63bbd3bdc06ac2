package boundary

import (
	"net/http"

	"github.com/gorilla/mux"

	"git.sr.ht/~jakintosh/keycheck/internal/logging"
)

func (b *Boundary) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(logging.Middleware(b.log))

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/me", b.Me()).Methods(http.MethodGet)
	api.HandleFunc("/secrets", b.ListSecrets()).Methods(http.MethodGet)
	api.HandleFunc("/secrets/{name}", b.PutSecret()).Methods(http.MethodPut)
	api.HandleFunc("/secrets/{name}", b.DeleteSecretHandler()).Methods(http.MethodDelete)

	r.PathPrefix(ProxyPrefix + "/").Handler(b.Proxy())
	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
