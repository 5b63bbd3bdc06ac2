package boundary

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"git.sr.ht/~jakintosh/keycheck/pkg/secretref"
)

// ProxyPrefix is stripped from request paths before forwarding.
const ProxyPrefix = "/proxy"

const maxProxyBody = 1 << 20

// Proxy forwards a request to the upstream data server after expanding the
// secret placeholders in its body. Placeholders without a stored secret
// expand to the empty string. The upstream response is returned unchanged.
func (b *Boundary) Proxy() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		path := strings.TrimPrefix(r.URL.Path, ProxyPrefix)
		log := b.log.WithFields(logrus.Fields{"method": r.Method, "path": path})

		body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody+1))
		if err != nil {
			log.WithError(err).Warn("failed to read proxied body")
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if len(body) > maxProxyBody {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		if names := secretref.Names(body); len(names) > 0 {
			log.WithField("secrets", names).Debug("expanding placeholders")
		}
		expanded, missing := secretref.Expand(body, b.lookup)
		if len(missing) > 0 {
			log.WithField("missing", missing).Warn("placeholders without stored secret")
		}

		upstreamURL := *b.upstream
		upstreamURL.Path = singleJoiningSlash(b.upstream.Path, path)
		upstreamURL.RawQuery = r.URL.RawQuery

		upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL.String(), bytes.NewReader(expanded))
		if err != nil {
			log.WithError(err).Error("failed to create upstream request")
			http.Error(w, "failed to create request", http.StatusInternalServerError)
			return
		}
		for key, values := range r.Header {
			if isHopByHopHeader(key) || strings.EqualFold(key, "Content-Length") {
				continue
			}
			for _, value := range values {
				upstreamReq.Header.Add(key, value)
			}
		}

		resp, err := b.client.Do(upstreamReq)
		if err != nil {
			log.WithError(err).Error("upstream request failed")
			http.Error(w, fmt.Sprintf("upstream request failed: %v", err), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			if isHopByHopHeader(key) {
				continue
			}
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)
		bytesCopied, _ := io.Copy(w, resp.Body)

		log.WithFields(logrus.Fields{
			"status":   resp.StatusCode,
			"bytes":    bytesCopied,
			"duration": time.Since(startTime),
		}).Debug("proxy complete")
	}
}

var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

func isHopByHopHeader(name string) bool {
	return hopByHopHeaders[strings.ToLower(name)]
}

func singleJoiningSlash(a, b string) string {
	aSlash := strings.HasSuffix(a, "/")
	bSlash := strings.HasPrefix(b, "/")
	switch {
	case aSlash && bSlash:
		return a + b[1:]
	case !aSlash && !bSlash:
		return a + "/" + b
	}
	return a + b
}
