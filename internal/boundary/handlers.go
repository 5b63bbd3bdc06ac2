package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

type SecretRequest struct {
	Value string `json:"value"`
}

type SecretListResponse struct {
	Names []string `json:"names"`
}

func (b *Boundary) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnJson(b.user, w)
	}
}

func (b *Boundary) PutSecret() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		var req SecretRequest
		if ok := b.decodeRequest(&req, w, r); !ok {
			return
		}

		if err := b.SetSecret(name, req.Value); err != nil {
			switch {
			case errors.Is(err, ErrInvalidSecretName), errors.Is(err, ErrEmptySecret):
				b.logApiErr(r, err.Error())
				w.WriteHeader(http.StatusBadRequest)
			default:
				b.logApiErr(r, fmt.Sprintf("failed to store secret: %v", err))
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *Boundary) DeleteSecretHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		if err := b.DeleteSecret(name); err != nil {
			switch {
			case errors.Is(err, ErrSecretNotFound):
				w.WriteHeader(http.StatusNotFound)
			default:
				b.logApiErr(r, fmt.Sprintf("failed to delete secret: %v", err))
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *Boundary) ListSecrets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := b.SecretNames()
		if err != nil {
			b.logApiErr(r, fmt.Sprintf("failed to list secrets: %v", err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		returnJson(SecretListResponse{Names: names}, w)
	}
}

func (b *Boundary) decodeRequest(req any, w http.ResponseWriter, r *http.Request) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		b.logApiErr(r, "bad json request")
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

func (b *Boundary) logApiErr(r *http.Request, msg string) {
	b.log.Warnf("%s %s: %s", r.Method, r.RequestURI, msg)
}
