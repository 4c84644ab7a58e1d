// Package server enforces the configured origin allow-list on WebSocket
// handshake requests.
package server

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

// compileOriginList canonicalizes the configured origins into the set matched
// against handshake requests. A bare "*" entry switches the relay to accepting
// any origin; malformed entries are logged and skipped so a typo cannot lock
// every client out silently.
func compileOriginList(origins []string) ([]string, bool) {
	var compiled []string
	wildcard := false

	for _, entry := range origins {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
		case entry == "*":
			wildcard = true
		default:
			canonical, ok := canonicalOrigin(entry)
			if !ok {
				log.Printf("Dropping unparseable origin %q from the allow-list", entry)
				continue
			}
			compiled = append(compiled, canonical)
		}
	}

	return compiled, wildcard
}

// canonicalOrigin reduces an origin to lowercase scheme://host form so that
// header values and configured entries compare equal regardless of casing.
func canonicalOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// checkOrigin is the upgrader's origin gate. Browsers always send the Origin
// header on WebSocket handshakes, so a missing or unparseable header is
// refused even when the wildcard is configured.
func checkOrigin(r *http.Request) bool {
	header := r.Header.Get("Origin")
	canonical, ok := canonicalOrigin(header)
	if !ok {
		log.Printf("Refusing WebSocket handshake with missing or malformed origin %q", header)
		return false
	}

	configMu.RLock()
	wildcard := allowAllOrigins
	_, listed := allowedOrigins[canonical]
	configMu.RUnlock()

	if wildcard || listed {
		return true
	}

	log.Printf("Refusing WebSocket handshake from origin %q: not in the allow-list", header)
	return false
}
