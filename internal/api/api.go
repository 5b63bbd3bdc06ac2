// Package api exposes the data server's HTTP routes: the per-profile key
// checks, the token-protected ping, and health/catalog endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"git.sr.ht/~jakintosh/keycheck/internal/service"
)

type API struct {
	service *service.Service
	log     logrus.FieldLogger
}

func New(svc *service.Service, log logrus.FieldLogger) *API {
	return &API{
		service: svc,
		log:     log,
	}
}

func (a *API) decodeRequest(req any, w http.ResponseWriter, r *http.Request) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		a.logApiErr(r, "bad json request")
		w.WriteHeader(http.StatusBadRequest)
		return false
	}
	return true
}

func returnJson(data any, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (a *API) logApiErr(r *http.Request, msg string) {
	a.log.Warnf("%s %s: %s", r.Method, r.RequestURI, msg)
}
