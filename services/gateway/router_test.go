package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testAPIPrefix = "/api/"

func request(method, target string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	for key, value := range headers {
		r.Header.Set(key, value)
	}
	return r
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
		want Strategy
	}{
		{"post bypasses", request(http.MethodPost, "/api/watchlist/sync", nil), StrategyBypass},
		{"put bypasses", request(http.MethodPut, "/api/portfolio", nil), StrategyBypass},
		{"delete bypasses even navigations", request(http.MethodDelete, "/dashboard", map[string]string{"Sec-Fetch-Mode": "navigate"}), StrategyBypass},
		{"api path is network-first", request(http.MethodGet, "/api/price/batch?symbols=ABC", nil), StrategyNetworkFirst},
		{"api path beats destination", request(http.MethodGet, "/api/chart.js", map[string]string{"Sec-Fetch-Dest": "script"}), StrategyNetworkFirst},
		{"image destination is cache-first", request(http.MethodGet, "/logo", map[string]string{"Sec-Fetch-Dest": "image"}), StrategyCacheFirst},
		{"font destination is cache-first", request(http.MethodGet, "/font", map[string]string{"Sec-Fetch-Dest": "font"}), StrategyCacheFirst},
		{"style destination is cache-first", request(http.MethodGet, "/app", map[string]string{"Sec-Fetch-Dest": "style"}), StrategyCacheFirst},
		{"script destination is cache-first", request(http.MethodGet, "/app", map[string]string{"Sec-Fetch-Dest": "script"}), StrategyCacheFirst},
		{"css extension fallback", request(http.MethodGet, "/static/app.css", nil), StrategyCacheFirst},
		{"js extension fallback", request(http.MethodGet, "/static/app.js", nil), StrategyCacheFirst},
		{"woff2 extension fallback", request(http.MethodGet, "/fonts/inter.woff2", nil), StrategyCacheFirst},
		{"png extension fallback", request(http.MethodGet, "/img/chart.png", nil), StrategyCacheFirst},
		{"navigate mode", request(http.MethodGet, "/dashboard", map[string]string{"Sec-Fetch-Mode": "navigate", "Sec-Fetch-Dest": "document"}), StrategyNavigation},
		{"accept html fallback", request(http.MethodGet, "/watchlist", map[string]string{"Accept": "text/html,application/xhtml+xml"}), StrategyNavigation},
		{"cors mode is not navigation", request(http.MethodGet, "/data", map[string]string{"Sec-Fetch-Mode": "cors"}), StrategyNetworkFirst},
		{"unmatched defaults to network-first", request(http.MethodGet, "/anything", nil), StrategyNetworkFirst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.req, testAPIPrefix))
		})
	}
}
