package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TokenSource resolves a role name to a bearer token. Implemented by
// auth.Context; declared here so the client does not depend on it.
type TokenSource interface {
	Token(role string) (string, bool)
}

// Client executes probes against one backend. The base URL is supplied
// once; every probe endpoint is resolved against it.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
	log    *zap.Logger
}

// NewClient creates a Client for the given API base URL. A nil logger is
// replaced with a nop logger.
func NewClient(base string, timeout time.Duration, tokens TokenSource, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
		log:    log,
	}
}

// Base returns the API base URL the client was built with.
func (c *Client) Base() string { return c.base }

// Do executes a single probe and returns its Result. Errors never escape:
// transport failures, status mismatches and decode problems are all
// captured on the Result.
func (c *Client) Do(ctx context.Context, p Probe) Result {
	start := time.Now()
	res := Result{
		Name:           p.Name,
		Method:         p.Method,
		ExpectedStatus: p.ExpectedStatus,
	}

	target, err := c.resolveURL(p)
	if err != nil {
		res.Error = err.Error()
		res.Kind = KindTransport
		return res.withLatency(start)
	}
	res.URL = target

	body, contentType, err := buildBody(p)
	if err != nil {
		res.Error = fmt.Sprintf("building request body: %v", err)
		res.Kind = KindTransport
		return res.withLatency(start)
	}

	req, err := http.NewRequestWithContext(ctx, p.Method, target, body)
	if err != nil {
		res.Error = fmt.Sprintf("building request: %v", err)
		res.Kind = KindTransport
		return res.withLatency(start)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	if p.AuthRole != "" {
		token, ok := c.tokens.Token(p.AuthRole)
		if !ok {
			return Skip(p.Name, fmt.Sprintf("no auth context for role %q", p.AuthRole)).withLatency(start)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug("probe request",
		zap.String("name", p.Name),
		zap.String("method", p.Method),
		zap.String("url", target))

	resp, err := c.http.Do(req)
	if err != nil {
		res.Error = err.Error()
		res.Kind = KindTransport
		return res.withLatency(start)
	}
	defer resp.Body.Close()

	res.ActualStatus = resp.StatusCode

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = fmt.Sprintf("reading response body: %v", err)
		res.Kind = KindTransport
		return res.withLatency(start)
	}

	decoded, jsonOK := decodeBody(raw)
	res.Body = decoded

	res = res.withLatency(start)

	if resp.StatusCode != p.ExpectedStatus {
		res.Kind = KindStatusMismatch
		res.Error = fmt.Sprintf("expected status %d, got %d", p.ExpectedStatus, resp.StatusCode)
		return res
	}
	if p.RequireJSON && !jsonOK {
		res.Kind = KindDecode
		res.Error = "response body is not valid JSON"
		return res
	}

	res.Success = true
	c.log.Debug("probe response",
		zap.String("name", p.Name),
		zap.Int("status", resp.StatusCode),
		zap.Float64("latency_s", res.LatencySeconds))
	return res
}

// resolveURL joins the probe endpoint to the base URL and appends query
// parameters. Absolute endpoints (used for fetching externally hosted
// documents such as an uploaded PO) pass through untouched.
func (c *Client) resolveURL(p Probe) (string, error) {
	target := p.Endpoint
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		if !strings.HasPrefix(target, "/") {
			target = "/" + target
		}
		target = c.base + target
	}
	if len(p.Query) == 0 {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", target, err)
	}
	q := u.Query()
	for k, v := range p.Query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// buildBody encodes the request body. JSON bodies get the JSON content
// type; multipart bodies carry the boundary content type from the writer.
func buildBody(p Probe) (io.Reader, string, error) {
	if p.Multipart != nil {
		return buildMultipart(p.Multipart)
	}
	if p.Body == nil {
		return nil, "", nil
	}
	if s, ok := p.Body.(string); ok {
		return strings.NewReader(s), "application/json", nil
	}
	data, err := json.Marshal(p.Body)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

func buildMultipart(m *Multipart) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, m.FieldName, m.FileName)}
	h["Content-Type"] = []string{m.ContentType}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(m.Content); err != nil {
		return nil, "", fmt.Errorf("writing file part: %w", err)
	}

	for k, v := range m.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing field %q: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// decodeBody parses the response body as JSON when parsing succeeds;
// otherwise the raw text is kept under RawBodyKey. The second return
// reports whether the body was valid JSON.
func decodeBody(raw []byte) (any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, true
	}
	return map[string]any{RawBodyKey: string(raw)}, false
}
