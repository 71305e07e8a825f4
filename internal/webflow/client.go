// Package webflow talks to the Webflow Data API v2 and exposes a site as a
// host.Host so the deployment engine can scan and write page content.
package webflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the Data API v2 root.
const DefaultBaseURL = "https://api.webflow.com/v2"

const pageSize = 100

// ErrNoToken is returned before any request when the client has no token.
var ErrNoToken = errors.New("webflow token is empty")

// APIError is a non-2xx answer from the Data API.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s status %d", e.Op, e.StatusCode)
}

type Client struct {
	http    *http.Client
	token   string
	base    string
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.base = strings.TrimRight(u, "/")
		}
	}
}

// WithTransportOptions replaces the env-derived transport settings.
func WithTransportOptions(opts TransportOptions) Option {
	return func(c *Client) {
		c.metrics = opts.Metrics
		c.http = &http.Client{Transport: NewRetryingLimiterTransport(opts)}
	}
}

// WithHTTPClient uses hc as is, bypassing the retrying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(token string, opts ...Option) *Client {
	c := &Client{token: token, base: DefaultBaseURL}
	WithTransportOptions(DefaultTransportOptionsFromEnv())(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Metrics returns the transport counters, nil when a custom client is used.
func (c *Client) Metrics() *Metrics { return c.metrics }

// ---------- Sites ----------

type Site struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	ShortName   string `json:"shortName"`
}

func (c *Client) GetSite(ctx context.Context, siteID string) (Site, error) {
	var s Site
	err := c.do(ctx, "site.get", http.MethodGet, "/sites/"+url.PathEscape(siteID), nil, nil, &s)
	return s, err
}

// ---------- Pages ----------

type Page struct {
	ID           string `json:"id"`
	SiteID       string `json:"siteId"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	ParentID     string `json:"parentId,omitempty"`
	CollectionID string `json:"collectionId,omitempty"`
	Draft        bool   `json:"draft"`
	Archived     bool   `json:"archived"`
}

type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type pagesResp struct {
	Pages      []Page     `json:"pages"`
	Pagination pagination `json:"pagination"`
}

// ListPages returns every page of the site in API order.
func (c *Client) ListPages(ctx context.Context, siteID string) ([]Page, error) {
	var all []Page
	offset := 0
	for {
		q := url.Values{}
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(pageSize))
		var payload pagesResp
		if err := c.do(ctx, "pages.list", http.MethodGet, "/sites/"+url.PathEscape(siteID)+"/pages", q, nil, &payload); err != nil {
			return nil, err
		}
		all = append(all, payload.Pages...)
		offset += len(payload.Pages)
		if len(payload.Pages) == 0 || offset >= payload.Pagination.Total {
			break
		}
	}
	return all, nil
}

// ---------- DOM ----------

// NodeText is the content of a text node.
type NodeText struct {
	HTML string `json:"html"`
	Text string `json:"text"`
}

// Node is one element of a page's static DOM.
type Node struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Text       *NodeText         `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type domResp struct {
	PageID     string     `json:"pageId"`
	Nodes      []Node     `json:"nodes"`
	Pagination pagination `json:"pagination"`
}

// GetPageDOM returns every static node of the page in document order.
func (c *Client) GetPageDOM(ctx context.Context, pageID string) ([]Node, error) {
	var all []Node
	offset := 0
	for {
		q := url.Values{}
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(pageSize))
		var payload domResp
		if err := c.do(ctx, "page.dom.get", http.MethodGet, "/pages/"+url.PathEscape(pageID)+"/dom", q, nil, &payload); err != nil {
			return nil, err
		}
		all = append(all, payload.Nodes...)
		offset += len(payload.Nodes)
		if len(payload.Nodes) == 0 || offset >= payload.Pagination.Total {
			break
		}
	}
	return all, nil
}

// NodeUpdate replaces the HTML content of a text node.
type NodeUpdate struct {
	NodeID string `json:"nodeId"`
	Text   string `json:"text"`
}

type domUpdateReq struct {
	Nodes []NodeUpdate `json:"nodes"`
}

// UpdatePageDOM writes text node content on the page's primary locale.
func (c *Client) UpdatePageDOM(ctx context.Context, pageID string, nodes []NodeUpdate) error {
	if len(nodes) == 0 {
		return nil
	}
	return c.do(ctx, "page.dom.update", http.MethodPost, "/pages/"+url.PathEscape(pageID)+"/dom", nil, domUpdateReq{Nodes: nodes}, nil)
}

// ---------- plumbing ----------

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	if c.token == "" {
		return ErrNoToken
	}
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := &APIError{Op: op, StatusCode: res.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		if data, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10)); json.Unmarshal(data, &msg) == nil {
			apiErr.Message = msg.Message
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
