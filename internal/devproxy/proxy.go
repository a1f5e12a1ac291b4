package devproxy

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"

)

// EventUpstreamFailed is published when a target cannot be reached.
const EventUpstreamFailed = "proxy.upstream_failed"

// Publisher allows the proxy to emit events without depending on a
// concrete event bus implementation.
type Publisher interface {
	Publish(eventType string, payload map[string]string)
}

// Recorder receives per-request proxy measurements.
type Recorder interface {
	ProxyRequest(prefix string, code int)
	ProxyUpgrade(prefix string)
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(p *Proxy) { p.logger = l }
}

// WithPublisher sets the event publisher.
func WithPublisher(pub Publisher) Option {
	return func(p *Proxy) { p.publisher = pub }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(p *Proxy) { p.recorder = rec }
}

// WithTransport overrides the round tripper used for every rule.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Proxy) { p.transport = rt }
}

type route struct {
	rule    Rule
	reverse *httputil.ReverseProxy
}

// Proxy forwards requests matching its rules. Rules are evaluated in order
// and the first match wins.
type Proxy struct {
	routes    []route
	logger    *slog.Logger
	publisher Publisher
	recorder  Recorder
	transport http.RoundTripper
}

// New creates a Proxy for the given rules. The rules slice is copied.
func New(rules []Rule, opts ...Option) (*Proxy, error) {
	p := &Proxy{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	for _, rule := range rules {
		if rule.Target == nil {
			return nil, &ConfigError{Prefix: rule.Prefix, Message: "target is required"}
		}
		if !strings.HasPrefix(rule.Prefix, "/") {
			return nil, &ConfigError{Prefix: rule.Prefix, Message: "prefix must start with /"}
		}
		p.routes = append(p.routes, route{rule: rule, reverse: p.reverseProxy(rule)})
	}
	return p, nil
}

// Rules returns a copy of the configured rules in evaluation order.
func (p *Proxy) Rules() []Rule {
	out := make([]Rule, len(p.routes))
	for i, rt := range p.routes {
		out[i] = rt.rule
	}
	return out
}

// Match returns the first rule whose prefix matches path.
func (p *Proxy) Match(path string) (Rule, bool) {
	if rt := p.match(path); rt != nil {
		return rt.rule, true
	}
	return Rule{}, false
}

// Middleware forwards matching requests and hands everything else to next.
func (p *Proxy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt := p.match(r.URL.Path)
		if rt == nil {
			next.ServeHTTP(w, r)
			return
		}
		p.forward(rt, w, r)
	})
}

// ServeHTTP forwards matching requests and answers 404 otherwise.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no proxy rule for path")
	})).ServeHTTP(w, r)
}

func (p *Proxy) match(path string) *route {
	for i := range p.routes {
		if p.routes[i].rule.Matches(path) {
			return &p.routes[i]
		}
	}
	return nil
}

func (p *Proxy) forward(rt *route, w http.ResponseWriter, r *http.Request) {
	upgrade := isUpgrade(r)
	if upgrade && !rt.rule.WS {
		p.logger.Warn("proxy upgrade rejected",
			slog.String("prefix", rt.rule.Prefix),
			slog.String("path", r.URL.Path),
			slog.String("upgrade", r.Header.Get("Upgrade")),
		)
		p.record(rt.rule.Prefix, http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "protocol upgrade not permitted for "+rt.rule.Prefix)
		return
	}

	rt.reverse.ServeHTTP(w, r)
}

func (p *Proxy) reverseProxy(rule Rule) *httputil.ReverseProxy {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(rule.Target)
			pr.SetXForwarded()
			if rule.ChangeOrigin {
				pr.Out.Host = rule.Target.Host
				if pr.In.Header.Get("Origin") != "" {
					pr.Out.Header.Set("Origin", rule.Origin())
				}
				return
			}
			pr.Out.Host = pr.In.Host
		},
		// MJPEG streams must reach the browser frame by frame.
		FlushInterval: -1,
		Transport:     p.transport,
	}
	// Runs before a 101 is hijacked or a body is copied.
	rp.ModifyResponse = func(resp *http.Response) error {
		if resp.StatusCode == http.StatusSwitchingProtocols && p.recorder != nil {
			p.recorder.ProxyUpgrade(rule.Prefix)
		}
		p.record(rule.Prefix, resp.StatusCode)
		p.logger.Debug("proxied request",
			slog.String("prefix", rule.Prefix),
			slog.String("method", resp.Request.Method),
			slog.String("path", resp.Request.URL.Path),
			slog.String("target", rule.Target.String()),
			slog.Int("status", resp.StatusCode),
		)
		return nil
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.Error("proxy upstream failed",
			slog.String("prefix", rule.Prefix),
			slog.String("target", rule.Target.String()),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if p.publisher != nil {
			p.publisher.Publish(EventUpstreamFailed, map[string]string{
				"prefix": rule.Prefix,
				"target": rule.Target.String(),
				"path":   r.URL.Path,
				"error":  err.Error(),
			})
		}
		p.record(rule.Prefix, http.StatusBadGateway)
		writeError(w, http.StatusBadGateway, "upstream "+rule.Target.Host+" unreachable")
	}
	return rp
}

func (p *Proxy) record(prefix string, code int) {
	if p.recorder != nil {
		p.recorder.ProxyRequest(prefix, code)
	}
}

// isUpgrade reports whether r asks to switch protocols.
func isUpgrade(r *http.Request) bool {
	if r.Header.Get("Upgrade") == "" {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), "upgrade") {
				return true
			}
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  msg,
		"status": strconv.Itoa(status),
	})
}
