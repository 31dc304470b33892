package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultBaseURL is the public Terraform registry.
const DefaultBaseURL = "https://registry.terraform.io"

var tracer = otel.Tracer("tfmcp/registry")

// Client speaks the registry's v1 HTTP API for a single namespace at a time.
// It does no caching or fallback; see Engine.
type Client struct {
	baseURL   string
	transport Transport
	logger    *slog.Logger
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, transport Transport, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
		logger:    logger,
	}
}

// BaseURL returns the registry root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

type providerPayload struct {
	ID          string       `json:"id"`
	Namespace   string       `json:"namespace"`
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Description string       `json:"description"`
	Source      string       `json:"source"`
	PublishedAt string       `json:"published_at"`
	Downloads   int64        `json:"downloads"`
	Tier        string       `json:"tier"`
	Versions    []string     `json:"versions"`
	Docs        []docPayload `json:"docs"`
}

type docPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Path        string `json:"path"`
	Slug        string `json:"slug"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

type versionPayload struct {
	Version string `json:"version"`
}

type providerVersionsPayload struct {
	ID       string           `json:"id"`
	Versions []versionPayload `json:"versions"`
}

type modulePayload struct {
	ID          string   `json:"id"`
	Namespace   string   `json:"namespace"`
	Name        string   `json:"name"`
	Provider    string   `json:"provider"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	PublishedAt string   `json:"published_at"`
	Downloads   int64    `json:"downloads"`
	Verified    bool     `json:"verified"`
	Versions    []string `json:"versions"`
	Root        *struct {
		Inputs  []json.RawMessage `json:"inputs"`
		Outputs []json.RawMessage `json:"outputs"`
	} `json:"root"`
}

type moduleVersionsPayload struct {
	Modules []struct {
		Source   string           `json:"source"`
		Versions []versionPayload `json:"versions"`
	} `json:"modules"`
}

type providerSearchPayload struct {
	Providers []providerPayload `json:"providers"`
}

type moduleSearchPayload struct {
	Modules []modulePayload `json:"modules"`
}

// Provider fetches a provider version. An empty version selects the latest.
func (c *Client) Provider(ctx context.Context, namespace, name, version string) (Record, []DocEntry, error) {
	path := "/v1/providers/" + url.PathEscape(namespace) + "/" + url.PathEscape(name)
	if version != "" {
		path += "/" + url.PathEscape(version)
	}
	var p providerPayload
	if err := c.get(ctx, path, nil, &p); err != nil {
		return Record{}, nil, err
	}
	if p.Name == "" || p.Version == "" {
		return Record{}, nil, &Error{Kind: ErrMalformedResponse, Subject: c.baseURL + path, Err: fmt.Errorf("missing name or version")}
	}
	docs := make([]DocEntry, 0, len(p.Docs))
	for _, d := range p.Docs {
		docs = append(docs, DocEntry{
			ID:          d.ID,
			Title:       d.Title,
			Slug:        d.Slug,
			Category:    d.Category,
			Subcategory: d.Subcategory,
			Path:        d.Path,
		})
	}
	return c.providerRecord(p), docs, nil
}

func (c *Client) providerRecord(p providerPayload) Record {
	return Record{
		Kind:        KindProvider,
		ID:          p.ID,
		Namespace:   p.Namespace,
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		Source:      p.Source,
		PublishedAt: p.PublishedAt,
		Downloads:   p.Downloads,
		Tier:        p.Tier,
		Versions:    p.Versions,
		DocsURL:     fmt.Sprintf("%s/providers/%s/%s/%s/docs", c.baseURL, p.Namespace, p.Name, p.Version),
	}
}

// ProviderVersions lists every published version of a provider.
func (c *Client) ProviderVersions(ctx context.Context, namespace, name string) ([]string, error) {
	path := "/v1/providers/" + url.PathEscape(namespace) + "/" + url.PathEscape(name) + "/versions"
	var p providerVersionsPayload
	if err := c.get(ctx, path, nil, &p); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(p.Versions))
	for _, v := range p.Versions {
		out = append(out, v.Version)
	}
	return out, nil
}

// Module fetches a module version. An empty version selects the latest.
func (c *Client) Module(ctx context.Context, namespace, name, provider, version string) (Record, error) {
	path := "/v1/modules/" + url.PathEscape(namespace) + "/" + url.PathEscape(name) + "/" + url.PathEscape(provider)
	if version != "" {
		path += "/" + url.PathEscape(version)
	}
	var p modulePayload
	if err := c.get(ctx, path, nil, &p); err != nil {
		return Record{}, err
	}
	if p.Name == "" || p.Version == "" {
		return Record{}, &Error{Kind: ErrMalformedResponse, Subject: c.baseURL + path, Err: fmt.Errorf("missing name or version")}
	}
	return c.moduleRecord(p), nil
}

func (c *Client) moduleRecord(p modulePayload) Record {
	r := Record{
		Kind:        KindModule,
		ID:          p.ID,
		Namespace:   p.Namespace,
		Name:        p.Name,
		Provider:    p.Provider,
		Version:     p.Version,
		Description: p.Description,
		Source:      p.Source,
		PublishedAt: p.PublishedAt,
		Downloads:   p.Downloads,
		Verified:    p.Verified,
		Versions:    p.Versions,
		DocsURL:     fmt.Sprintf("%s/modules/%s/%s/%s/%s", c.baseURL, p.Namespace, p.Name, p.Provider, p.Version),
	}
	if p.Root != nil {
		r.Inputs = len(p.Root.Inputs)
		r.Outputs = len(p.Root.Outputs)
	}
	return r
}

// ModuleVersions lists every published version of a module.
func (c *Client) ModuleVersions(ctx context.Context, namespace, name, provider string) ([]string, error) {
	path := "/v1/modules/" + url.PathEscape(namespace) + "/" + url.PathEscape(name) + "/" + url.PathEscape(provider) + "/versions"
	var p moduleVersionsPayload
	if err := c.get(ctx, path, nil, &p); err != nil {
		return nil, err
	}
	var out []string
	for _, m := range p.Modules {
		for _, v := range m.Versions {
			out = append(out, v.Version)
		}
	}
	return out, nil
}

// SearchProviders runs a free-text provider search.
func (c *Client) SearchProviders(ctx context.Context, term string, limit int) ([]Record, error) {
	q := url.Values{"q": {term}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var p providerSearchPayload
	if err := c.get(ctx, "/v1/providers", q, &p); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(p.Providers))
	for _, pp := range p.Providers {
		out = append(out, c.providerRecord(pp))
	}
	return out, nil
}

// SearchModules runs a free-text module search.
func (c *Client) SearchModules(ctx context.Context, term string, limit int) ([]Record, error) {
	q := url.Values{"q": {term}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var p moduleSearchPayload
	if err := c.get(ctx, "/v1/modules/search", q, &p); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(p.Modules))
	for _, mp := range p.Modules {
		out = append(out, c.moduleRecord(mp))
	}
	return out, nil
}

// get issues a GET and decodes a 2xx JSON body into out, mapping every other
// outcome to a typed *Error.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	ctx, span := tracer.Start(ctx, "registry.http")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", u))

	start := time.Now()
	resp, err := c.transport.Get(ctx, u)
	if err != nil {
		rerr := classifyTransportError(ctx, u, err)
		span.SetStatus(codes.Error, rerr.Error())
		c.logger.Debug("registry request failed", "url", u, "kind", rerr.Kind, "error", err)
		return rerr
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug("registry request", "url", u, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Kind: ErrNotFound, Subject: u, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		c.logger.Warn("registry rate limit", "url", u, "retryAfter", retryAfter)
		span.SetStatus(codes.Error, "rate limited")
		return &Error{Kind: ErrRateLimited, Subject: u, StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return &Error{Kind: ErrNetwork, Subject: u, StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		span.SetStatus(codes.Error, "malformed response")
		return &Error{Kind: ErrMalformedResponse, Subject: u, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Unparseable or past
// values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
