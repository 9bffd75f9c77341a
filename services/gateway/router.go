package gateway

import (
	"net/http"
	"path"
	"strings"
)

// Strategy is the caching strategy a request is routed to.
type Strategy string

const (
	// StrategyBypass forwards the request untouched; no store is read or written.
	StrategyBypass Strategy = "bypass"
	// StrategyNetworkFirst tries the network, caches 2xx into the runtime
	// store, and falls back to any cached snapshot.
	StrategyNetworkFirst Strategy = "network-first"
	// StrategyCacheFirst serves a cached snapshot when present and only then
	// goes to the network.
	StrategyCacheFirst Strategy = "cache-first"
	// StrategyNavigation is network-first with the offline document as the
	// final fallback for full-page navigations.
	StrategyNavigation Strategy = "navigation"
)

// Resource destinations routed cache-first.
var cacheFirstDestinations = map[string]bool{
	"image":  true,
	"font":   true,
	"style":  true,
	"script": true,
}

// Extension fallback for clients that do not send fetch-metadata headers.
var extensionDestinations = map[string]string{
	".png":   "image",
	".jpg":   "image",
	".jpeg":  "image",
	".gif":   "image",
	".webp":  "image",
	".svg":   "image",
	".ico":   "image",
	".avif":  "image",
	".woff":  "font",
	".woff2": "font",
	".ttf":   "font",
	".otf":   "font",
	".eot":   "font",
	".css":   "style",
	".js":    "script",
	".mjs":   "script",
}

// Classify buckets an intercepted request. Order matters: non-GET traffic
// is never intercepted, API paths are always network-first, then static
// destinations, then navigations; everything else defaults to network-first.
func Classify(r *http.Request, apiPrefix string) Strategy {
	if r.Method != http.MethodGet {
		return StrategyBypass
	}

	if strings.HasPrefix(r.URL.Path, apiPrefix) {
		return StrategyNetworkFirst
	}

	if cacheFirstDestinations[destination(r)] {
		return StrategyCacheFirst
	}

	if isNavigation(r) {
		return StrategyNavigation
	}

	return StrategyNetworkFirst
}

// destination resolves the request's resource type, preferring the
// Sec-Fetch-Dest header and falling back to the URL extension.
func destination(r *http.Request) string {
	if dest := r.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return dest
	}
	ext := strings.ToLower(path.Ext(r.URL.Path))
	return extensionDestinations[ext]
}

// isNavigation reports whether the request is a full-page navigation.
func isNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
