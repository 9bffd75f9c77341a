package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go_edge_gateway/services/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	payloads []notify.Payload
}

func (f *fakeNotifier) Dispatch(_ context.Context, payload notify.Payload) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

// marketBackend is a canned backend for one evaluation cycle.
type marketBackend struct {
	watchlist  []string
	prices     string // raw JSON array
	alerts     string // raw JSON alerts document
	priceCalls int32
}

func (b *marketBackend) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/watchlist":
			stocks := make([]map[string]string, 0, len(b.watchlist))
			for _, symbol := range b.watchlist {
				stocks = append(stocks, map[string]string{"symbol": symbol})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"stocks": stocks})
		case "/api/price/batch":
			atomic.AddInt32(&b.priceCalls, 1)
			w.Write([]byte(b.prices))
		case "/api/user/alerts":
			w.Write([]byte(b.alerts))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestEngine(backendURL string, notifier Notifier) *Engine {
	return NewEngine(notifier, Options{BackendBaseURL: backendURL})
}

func TestAboveRuleTriggersAtOrOverTarget(t *testing.T) {
	backend := &marketBackend{
		watchlist: []string{"ABC"},
		prices:    `[{"symbol":"ABC","currentPrice":105}]`,
		alerts:    `{"alerts":[{"symbol":"ABC","type":"above","targetPrice":100}]}`,
	}
	server := backend.server()
	defer server.Close()

	notifier := &fakeNotifier{}
	require.NoError(t, newTestEngine(server.URL, notifier).Evaluate(context.Background()))

	require.Len(t, notifier.payloads, 1)
	payload := notifier.payloads[0]
	assert.Equal(t, "alert-ABC", payload.Tag)
	assert.Equal(t, "/stock/ABC", payload.URL)
	assert.True(t, payload.RequireInteraction)
	assert.Contains(t, payload.Body, "ABC")
	assert.Contains(t, payload.Body, "105")
}

func TestAboveRuleDoesNotTriggerBelowTarget(t *testing.T) {
	backend := &marketBackend{
		watchlist: []string{"ABC"},
		prices:    `[{"symbol":"ABC","currentPrice":105}]`,
		alerts:    `{"alerts":[{"symbol":"ABC","type":"above","targetPrice":110}]}`,
	}
	server := backend.server()
	defer server.Close()

	notifier := &fakeNotifier{}
	require.NoError(t, newTestEngine(server.URL, notifier).Evaluate(context.Background()))
	assert.Empty(t, notifier.payloads)
}

func TestBelowRuleTriggersAtOrUnderTarget(t *testing.T) {
	backend := &marketBackend{
		watchlist: []string{"XYZ"},
		prices:    `[{"symbol":"XYZ","currentPrice":48.5}]`,
		alerts:    `{"alerts":[{"symbol":"XYZ","type":"below","targetPrice":50}]}`,
	}
	server := backend.server()
	defer server.Close()

	notifier := &fakeNotifier{}
	require.NoError(t, newTestEngine(server.URL, notifier).Evaluate(context.Background()))

	require.Len(t, notifier.payloads, 1)
	assert.Equal(t, "alert-XYZ", notifier.payloads[0].Tag)
}

func TestExactTargetTriggersBothDirections(t *testing.T) {
	backend := &marketBackend{
		watchlist: []string{"ABC"},
		prices:    `[{"symbol":"ABC","currentPrice":100}]`,
		alerts: `{"alerts":[
			{"symbol":"ABC","type":"above","targetPrice":100},
			{"symbol":"ABC","type":"below","targetPrice":100}
		]}`,
	}
	server := backend.server()
	defer server.Close()

	notifier := &fakeNotifier{}
	require.NoError(t, newTestEngine(server.URL, notifier).Evaluate(context.Background()))
	assert.Len(t, notifier.payloads, 2)
}

func TestRuleWithoutQuoteIsSkipped(t *testing.T) {
	backend := &marketBackend{
		watchlist: []string{"ABC"},
		prices:    `[{"symbol":"ABC","currentPrice":105}]`,
		alerts: `{"alerts":[
			{"symbol":"MISSING","type":"above","targetPrice":1},
			{"symbol":"ABC","type":"above","targetPrice":100}
		]}`,
	}
	server := backend.server()
	defer server.Close()

	notifier := &fakeNotifier{}
	require.NoError(t, newTestEngine(server.URL, notifier).Evaluate(context.Background()))

	require.Len(t, notifier.payloads, 1)
	assert.Equal(t, "alert-ABC", notifier.payloads[0].Tag)
}

func TestEmptyWatchlistTerminatesWithoutFetchingPrices(t *testing.T) {
	backend := &marketBackend{watchlist: nil, prices: `[]`, alerts: `{"alerts":[]}`}
	server := backend.server()
	defer server.Close()

	notifier := &fakeNotifier{}
	require.NoError(t, newTestEngine(server.URL, notifier).Evaluate(context.Background()))

	assert.Empty(t, notifier.payloads)
	assert.EqualValues(t, 0, atomic.LoadInt32(&backend.priceCalls))
}

func TestFailedStageAbortsWholeCycle(t *testing.T) {
	// Prices endpoint serves malformed JSON; the cycle aborts and nothing
	// is dispatched.
	backend := &marketBackend{
		watchlist: []string{"ABC"},
		prices:    `{not json`,
		alerts:    `{"alerts":[{"symbol":"ABC","type":"above","targetPrice":1}]}`,
	}
	server := backend.server()
	defer server.Close()

	notifier := &fakeNotifier{}
	err := newTestEngine(server.URL, notifier).Evaluate(context.Background())
	assert.Error(t, err)
	assert.Empty(t, notifier.payloads)
}

func TestUnreachableBackendAbortsCycle(t *testing.T) {
	notifier := &fakeNotifier{}
	err := newTestEngine("http://127.0.0.1:1", notifier).Evaluate(context.Background())
	assert.Error(t, err)
	assert.Empty(t, notifier.payloads)
}
