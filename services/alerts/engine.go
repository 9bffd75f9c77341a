package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go_edge_gateway/models"
	"go_edge_gateway/services/notify"
)

// Notifier delivers a built notification. Implemented by notify.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, payload notify.Payload) error
}

// Options configures the alert evaluation engine.
type Options struct {
	BackendBaseURL    string
	PriceFetchTimeout time.Duration
	Client            *http.Client
}

// Engine evaluates user price alerts on each periodic signal. A cycle is
// fetch watchlist, batch-fetch prices, fetch rules, evaluate crossings. Any
// stage failing aborts the whole cycle; the next signal reruns it from
// scratch, so evaluation stays idempotent no matter how often the host
// fires.
type Engine struct {
	httpClient   *http.Client
	backendURL   string
	notifier     Notifier
	priceTimeout time.Duration
}

// NewEngine creates a new alert evaluation engine
func NewEngine(notifier Notifier, opts Options) *Engine {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	timeout := opts.PriceFetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Engine{
		httpClient:   client,
		backendURL:   strings.TrimSuffix(opts.BackendBaseURL, "/"),
		notifier:     notifier,
		priceTimeout: timeout,
	}
}

// Evaluate runs one full evaluation cycle.
func (e *Engine) Evaluate(ctx context.Context) error {
	symbols, err := e.fetchWatchlist(ctx)
	if err != nil {
		return fmt.Errorf("alert cycle aborted: %w", err)
	}
	if len(symbols) == 0 {
		return nil
	}

	quotes, err := e.fetchPrices(ctx, symbols)
	if err != nil {
		return fmt.Errorf("alert cycle aborted: %w", err)
	}

	rules, err := e.fetchRules(ctx)
	if err != nil {
		return fmt.Errorf("alert cycle aborted: %w", err)
	}

	prices := make(map[string]models.PriceQuote, len(quotes))
	for _, quote := range quotes {
		prices[quote.Symbol] = quote
	}

	triggered := 0
	for _, rule := range rules {
		quote, ok := prices[rule.Symbol]
		if !ok {
			continue
		}

		crossed := false
		switch rule.Type {
		case models.AlertTypeAbove:
			crossed = quote.CurrentPrice.GreaterThanOrEqual(rule.TargetPrice)
		case models.AlertTypeBelow:
			crossed = quote.CurrentPrice.LessThanOrEqual(rule.TargetPrice)
		}
		if !crossed {
			continue
		}

		if err := e.notifier.Dispatch(ctx, e.buildNotification(rule, quote)); err != nil {
			log.Printf("Alert notification failed for %s: %v", rule.Symbol, err)
			continue
		}
		triggered++
	}

	if triggered > 0 {
		log.Printf("Alert evaluation triggered %d notification(s) across %d rule(s)", triggered, len(rules))
	}
	return nil
}

// buildNotification formats the alert crossing as a notification. The tag
// is symbol-scoped so repeated triggers replace instead of stack.
func (e *Engine) buildNotification(rule models.AlertRule, quote models.PriceQuote) notify.Payload {
	direction := "above"
	if rule.Type == models.AlertTypeBelow {
		direction = "below"
	}
	return notify.Payload{
		Title: fmt.Sprintf("Price alert: %s", rule.Symbol),
		Body: fmt.Sprintf("%s is trading at %s, %s your target of %s",
			rule.Symbol, quote.CurrentPrice.String(), direction, rule.TargetPrice.String()),
		Icon:  notify.DefaultIcon,
		Badge: notify.DefaultBadge,
		Tag:   "alert-" + rule.Symbol,
		URL:   "/stock/" + rule.Symbol,
		Actions: []notify.Action{
			{Action: "view", Title: "View"},
			{Action: "dismiss", Title: "Dismiss"},
		},
		RequireInteraction: true,
	}
}

// fetchWatchlist returns the ordered watchlist symbols.
func (e *Engine) fetchWatchlist(ctx context.Context) ([]string, error) {
	var watchlist models.WatchlistResponse
	if err := e.getJSON(ctx, e.backendURL+"/api/watchlist", &watchlist); err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(watchlist.Stocks))
	for _, stock := range watchlist.Stocks {
		symbols = append(symbols, stock.Symbol)
	}
	return symbols, nil
}

// fetchPrices batch-fetches quotes for all symbols in one call, capped by
// the explicit price-fetch timeout. This is the only timeout the engine
// imposes on top of the caller's context.
func (e *Engine) fetchPrices(ctx context.Context, symbols []string) ([]models.PriceQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, e.priceTimeout)
	defer cancel()

	endpoint := e.backendURL + "/api/price/batch?symbols=" + url.QueryEscape(strings.Join(symbols, ","))
	var quotes []models.PriceQuote
	if err := e.getJSON(ctx, endpoint, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

// fetchRules returns the current alert rule list.
func (e *Engine) fetchRules(ctx context.Context) ([]models.AlertRule, error) {
	var response models.AlertsResponse
	if err := e.getJSON(ctx, e.backendURL+"/api/user/alerts", &response); err != nil {
		return nil, err
	}
	return response.Alerts, nil
}

// getJSON fetches and decodes one backend endpoint.
func (e *Engine) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s returned status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s failed: %w", endpoint, err)
	}
	return nil
}
