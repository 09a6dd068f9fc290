package ctl

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"

	"autobulk/pkg/aggregator"
)

// APIError is a non-2xx gateway answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fasthttp.StatusMessage(e.Status)
	}
	return e.Message + " (" + fasthttp.StatusMessage(e.Status) + ")"
}

// Client talks to a running gateway.
type Client struct {
	base    string
	key     string
	timeout time.Duration
	http    *fasthttp.Client
}

type ClientOption func(*Client)

// WithDial replaces the network dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) ClientOption {
	return func(c *Client) { c.http.Dial = dial }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewClient(base, key string, opts ...ClientOption) *Client {
	c := &Client{
		base:    strings.TrimRight(base, "/"),
		key:     key,
		timeout: 30 * time.Second,
		http:    &fasthttp.Client{Name: "autobulkctl"},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// do sends a request and decodes a 2xx JSON answer into out. Non-2xx
// answers come back as *APIError, with the body still decoded into out
// when it parses.
func (c *Client) do(method, path string, body []byte, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(c.base + path)
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}
	if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}

	status := resp.StatusCode()
	raw := resp.Body()
	if status >= 200 && status < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		return errors.Wrap(json.Unmarshal(raw, out), "decode response")
	}
	if out != nil {
		_ = json.Unmarshal(raw, out)
	}
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &e)
	return &APIError{Status: status, Message: e.Error}
}

// StatsReport mirrors GET /admin/stats.
type StatsReport struct {
	Aggregators []aggregator.Stats `json:"aggregators"`
	Totals      struct {
		Submitted     uint64 `json:"submitted"`
		Queued        int    `json:"queued"`
		Batches       uint64 `json:"batches"`
		FlushedOps    uint64 `json:"flushed_ops"`
		FailedBatches uint64 `json:"failed_batches"`
		LostOps       uint64 `json:"lost_ops"`
	} `json:"totals"`
}

func (c *Client) Stats() (StatsReport, error) {
	var r StatsReport
	err := c.do(fasthttp.MethodGet, "/admin/stats", nil, &r)
	return r, err
}

// TargetInfo mirrors one entry of GET /admin/targets.
type TargetInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Identity string `json:"identity"`
	State    string `json:"state"`
	Queued   int    `json:"queued"`
}

func (c *Client) Targets() ([]TargetInfo, error) {
	var r []TargetInfo
	err := c.do(fasthttp.MethodGet, "/admin/targets", nil, &r)
	return r, err
}

// Flush drains one target, or all of them when target is empty.
func (c *Client) Flush(target string) ([]string, error) {
	path := "/admin/flush"
	if target != "" {
		path += "?target=" + url.QueryEscape(target)
	}
	var r struct {
		Flushed []string `json:"flushed"`
	}
	err := c.do(fasthttp.MethodPost, path, nil, &r)
	return r.Flushed, err
}

// SubmitResult mirrors the intake answer. On a 503 it still reports how
// many operations were accepted before the gateway gave up.
type SubmitResult struct {
	Target   string `json:"target"`
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) Submit(target string, body []byte) (SubmitResult, error) {
	var r SubmitResult
	err := c.do(fasthttp.MethodPost, IntakePath(target), body, &r)
	return r, err
}

// IntakePath is the intake route for target.
func IntakePath(target string) string {
	return "/v1/targets/" + url.PathEscape(target) + "/ops"
}
