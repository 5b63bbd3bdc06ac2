package api

import (
	"errors"
	"fmt"
	"net/http"

	"git.sr.ht/~jakintosh/keycheck/internal/service"
)

type CheckResponse struct {
	JWTToken string `json:"jwt_token"`
}

type CheckInfo struct {
	Name       string `json:"name"`
	SecretName string `json:"secret_name"`
	CheckPath  string `json:"check_path"`
	KeyField   string `json:"key_field"`
	Label      string `json:"label"`
	Audience   string `json:"audience"`
	Lifetime   string `json:"lifetime"`
}

// Check verifies the key in the request body against the check at the
// request path. A wrong key is 401 with an empty JSON object.
func (a *API) Check() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if ok := a.decodeRequest(&body, w, r); !ok {
			return
		}

		token, err := a.service.Check(r.URL.Path, stringFields(body))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrCheckNotFound):
				w.WriteHeader(http.StatusNotFound)
			case errors.Is(err, service.ErrKeyMissing):
				a.logApiErr(r, err.Error())
				w.WriteHeader(http.StatusBadRequest)
			case errors.Is(err, service.ErrInvalidKey):
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("{}\n"))
			default:
				a.logApiErr(r, fmt.Sprintf("check failed: %v", err))
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}

		returnJson(CheckResponse{JWTToken: token.Encoded()}, w)
	}
}

// Checks lists the catalog.
func (a *API) Checks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs := a.service.Catalog().Definitions()
		infos := make([]CheckInfo, 0, len(defs))
		for _, def := range defs {
			infos = append(infos, CheckInfo{
				Name:       def.Name,
				SecretName: def.SecretName,
				CheckPath:  def.CheckPath,
				KeyField:   def.KeyField,
				Label:      def.Label,
				Audience:   def.Audience,
				Lifetime:   def.Lifetime.String(),
			})
		}
		returnJson(infos, w)
	}
}

// stringFields keeps the string members of a decoded JSON object.
func stringFields(body map[string]any) map[string]string {
	fields := make(map[string]string, len(body))
	for k, v := range body {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return fields
}
