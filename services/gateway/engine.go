package gateway

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go_edge_gateway/models"
	"go_edge_gateway/services/cachestore"

	"github.com/gin-gonic/gin"
)

// ResultKind says where a gateway response came from.
type ResultKind int

const (
	// ResultRuntimeFetch is a live upstream response (cached when 2xx).
	ResultRuntimeFetch ResultKind = iota
	// ResultStaticAsset was served from a cache store.
	ResultStaticAsset
	// ResultOfflineFallback was synthesized because the network failed and
	// no usable snapshot existed.
	ResultOfflineFallback
)

// Result is a materialized gateway response.
type Result struct {
	Kind   ResultKind
	Status int
	Header http.Header
	Body   []byte
}

// Options configures the strategy engine. Injected at construction so tests
// can point it at fake upstreams and in-memory stores.
type Options struct {
	BackendBaseURL  string
	FrontendBaseURL string
	APIPrefix       string
	RuntimeStore    string
	OfflinePath     string
	Client          *http.Client
}

// Engine implements the three caching strategies on top of the store manager.
type Engine struct {
	stores       *cachestore.Manager
	httpClient   *http.Client
	backendURL   string
	frontendURL  string
	apiPrefix    string
	runtimeStore string
	offlinePath  string
}

// NewEngine creates a new cache strategy engine
func NewEngine(stores *cachestore.Manager, opts Options) *Engine {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Engine{
		stores:       stores,
		httpClient:   client,
		backendURL:   strings.TrimSuffix(opts.BackendBaseURL, "/"),
		frontendURL:  strings.TrimSuffix(opts.FrontendBaseURL, "/"),
		apiPrefix:    opts.APIPrefix,
		runtimeStore: opts.RuntimeStore,
		offlinePath:  opts.OfflinePath,
	}
}

// Handle intercepts one request. It is the fetch entry point: the gin
// handler returns only once the full strategy workflow settled.
func (e *Engine) Handle(c *gin.Context) {
	switch Classify(c.Request, e.apiPrefix) {
	case StrategyBypass:
		e.passThrough(c)
	case StrategyCacheFirst:
		e.write(c, e.CacheFirstWithNetwork(c.Request.Context(), c.Request))
	case StrategyNavigation:
		e.write(c, e.NetworkFirstWithOfflineFallback(c.Request.Context(), c.Request))
	default:
		e.write(c, e.NetworkFirstWithCache(c.Request.Context(), c.Request))
	}
}

// NetworkFirstWithCache tries the network, persists 2xx responses into the
// runtime store, and falls back to any cached snapshot. With no network and
// no snapshot it synthesizes the offline JSON error.
func (e *Engine) NetworkFirstWithCache(ctx context.Context, r *http.Request) *Result {
	snap, err := e.fetchUpstream(ctx, r)
	if err == nil {
		e.cacheIfSuccessful(r, snap)
		return &Result{Kind: ResultRuntimeFetch, Status: snap.Status, Header: snap.Header, Body: snap.Body}
	}
	log.Printf("Network fetch failed for %s %s: %v", r.Method, r.URL.RequestURI(), err)

	entry, found, lookupErr := e.stores.GetAny(r.Method, cacheKey(r))
	if lookupErr != nil {
		log.Printf("Cache fallback lookup failed: %v", lookupErr)
	}
	if found {
		return resultFromEntry(entry, ResultStaticAsset)
	}

	return offlineJSONResult()
}

// CacheFirstWithNetwork serves a cached snapshot when present, with no
// network revalidation: a hit is returned as-is until the store version
// rotates, stale or not (flagged for product review, intentional). On a
// miss it fetches, persisting 2xx responses; a network failure yields an
// empty 404 placeholder.
func (e *Engine) CacheFirstWithNetwork(ctx context.Context, r *http.Request) *Result {
	entry, found, lookupErr := e.stores.GetAny(r.Method, cacheKey(r))
	if lookupErr != nil {
		log.Printf("Cache lookup failed: %v", lookupErr)
	}
	if found {
		return resultFromEntry(entry, ResultStaticAsset)
	}

	snap, err := e.fetchUpstream(ctx, r)
	if err != nil {
		log.Printf("Network fetch failed for %s %s: %v", r.Method, r.URL.RequestURI(), err)
		return &Result{Kind: ResultOfflineFallback, Status: http.StatusNotFound, Header: http.Header{}}
	}
	e.cacheIfSuccessful(r, snap)
	return &Result{Kind: ResultRuntimeFetch, Status: snap.Status, Header: snap.Header, Body: snap.Body}
}

// NetworkFirstWithOfflineFallback is the navigation strategy: the identical
// network-first attempt, and on total failure (network down, nothing cached
// for the request) the precached offline document, or an inline synthesized
// one when even that is missing.
func (e *Engine) NetworkFirstWithOfflineFallback(ctx context.Context, r *http.Request) *Result {
	snap, err := e.fetchUpstream(ctx, r)
	if err == nil {
		e.cacheIfSuccessful(r, snap)
		return &Result{Kind: ResultRuntimeFetch, Status: snap.Status, Header: snap.Header, Body: snap.Body}
	}
	log.Printf("Navigation fetch failed for %s: %v", r.URL.RequestURI(), err)

	entry, found, lookupErr := e.stores.GetAny(r.Method, cacheKey(r))
	if lookupErr != nil {
		log.Printf("Cache fallback lookup failed: %v", lookupErr)
	}
	if found {
		return resultFromEntry(entry, ResultStaticAsset)
	}

	offline, found, lookupErr := e.stores.GetAny(http.MethodGet, e.offlinePath)
	if lookupErr != nil {
		log.Printf("Offline page lookup failed: %v", lookupErr)
	}
	if found {
		return resultFromEntry(offline, ResultOfflineFallback)
	}

	header := http.Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")
	return &Result{
		Kind:   ResultOfflineFallback,
		Status: http.StatusOK,
		Header: header,
		Body:   []byte(offlineDocument),
	}
}

// passThrough forwards a non-GET request untouched. No store is read or
// written; caching semantics for mutating verbs are out of scope.
func (e *Engine) passThrough(c *gin.Context) {
	r := c.Request
	upstream, err := http.NewRequestWithContext(r.Context(), r.Method, e.upstreamFor(r)+r.URL.RequestURI(), r.Body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "invalid upstream request"})
		return
	}
	copyHeader(upstream.Header, r.Header)

	resp, err := e.httpClient.Do(upstream)
	if err != nil {
		log.Printf("Pass-through failed for %s %s: %v", r.Method, r.URL.RequestURI(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unreachable"})
		return
	}
	defer resp.Body.Close()

	copyHeader(c.Writer.Header(), resp.Header)
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		log.Printf("Pass-through body copy failed: %v", err)
	}
}

// upstreamSnapshot is a fully read upstream response.
type upstreamSnapshot struct {
	Status int
	Header http.Header
	Body   []byte
}

// fetchUpstream performs the network leg of a strategy and reads the whole
// response so it can be both returned and cached.
func (e *Engine) fetchUpstream(ctx context.Context, r *http.Request) (*upstreamSnapshot, error) {
	upstream, err := http.NewRequestWithContext(ctx, r.Method, e.upstreamFor(r)+r.URL.RequestURI(), nil)
	if err != nil {
		return nil, err
	}
	copyHeader(upstream.Header, r.Header)

	resp, err := e.httpClient.Do(upstream)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &upstreamSnapshot{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// cacheIfSuccessful writes a snapshot into the runtime store, but only for
// successful statuses; transient failures are never cached. A store write
// failure is logged and the live response still flows to the caller.
func (e *Engine) cacheIfSuccessful(r *http.Request, snap *upstreamSnapshot) {
	if snap.Status < 200 || snap.Status >= 300 {
		return
	}
	entry := &models.CacheEntry{
		Method: r.Method,
		URL:    cacheKey(r),
		Status: snap.Status,
		Body:   snap.Body,
	}
	if err := entry.SetHeader(snap.Header); err != nil {
		log.Printf("Header snapshot failed for %s: %v", cacheKey(r), err)
	}
	if err := e.stores.Put(e.runtimeStore, entry); err != nil {
		log.Printf("Runtime cache write failed for %s: %v", cacheKey(r), err)
	}
}

// upstreamFor picks the origin a request is proxied to: API traffic goes to
// the backend, everything else to the frontend app origin.
func (e *Engine) upstreamFor(r *http.Request) string {
	if strings.HasPrefix(r.URL.Path, e.apiPrefix) {
		return e.backendURL
	}
	return e.frontendURL
}

// write materializes a strategy Result onto the gin response.
func (e *Engine) write(c *gin.Context, res *Result) {
	copyHeader(c.Writer.Header(), res.Header)
	c.Status(res.Status)
	if len(res.Body) > 0 {
		if _, err := c.Writer.Write(res.Body); err != nil {
			log.Printf("Response write failed: %v", err)
		}
	}
	c.Abort()
}

// cacheKey is the request identity used for cache entries: path + query as
// the client sent it.
func cacheKey(r *http.Request) string {
	return r.URL.RequestURI()
}

func resultFromEntry(entry *models.CacheEntry, kind ResultKind) *Result {
	return &Result{Kind: kind, Status: entry.Status, Header: entry.Header(), Body: entry.Body}
}

func offlineJSONResult() *Result {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &Result{
		Kind:   ResultOfflineFallback,
		Status: http.StatusServiceUnavailable,
		Header: header,
		Body:   []byte(`{"error":"network unavailable and no cached data","offline":true}`),
	}
}

// Hop-by-hop headers never forwarded between client and upstream.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}
