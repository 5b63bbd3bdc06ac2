package api

import (
	"errors"
	"net/http"
	"strings"
)

type PingResponse struct {
	OK       bool     `json:"ok"`
	Subject  string   `json:"subject"`
	Audience []string `json:"audience"`
}

// Ping answers 200 only for a valid session token.
func (a *API) Ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		encoded, err := authHeaderTokenExtractor(r)
		if err != nil {
			a.logApiErr(r, err.Error())
			unauthorized(w)
			return
		}

		token, err := a.service.Ping(encoded)
		if err != nil {
			unauthorized(w)
			return
		}

		returnJson(PingResponse{
			OK:       true,
			Subject:  token.Subject(),
			Audience: token.Audience(),
		}, w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="keycheck"`)
	w.WriteHeader(http.StatusUnauthorized)
}

// authHeaderTokenExtractor returns the bearer token from the Authorization
// header. A missing header is not an error and yields "".
func authHeaderTokenExtractor(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}

	authHeaderParts := strings.Fields(authHeader)
	if len(authHeaderParts) != 2 || strings.ToLower(authHeaderParts[0]) != "bearer" {
		return "", errors.New("authorization header format must be Bearer {token}")
	}

	return authHeaderParts[1], nil
}
