package webflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

// fakeAPI serves a tiny in-memory site over the Data API routes.
type fakeAPI struct {
	t       *testing.T
	pages   []Page
	dom     map[string][]Node
	updates map[string][]NodeUpdate
	calls   map[string]int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	return &fakeAPI{t: t, dom: map[string][]Node{}, updates: map[string][]NodeUpdate{}, calls: map[string]int{}}
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sites/{site}", func(w http.ResponseWriter, r *http.Request) {
		f.calls["site"]++
		if r.PathValue("site") != "site-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Site not found"}`))
			return
		}
		writeJSON(w, Site{ID: "site-1", DisplayName: "Maison", ShortName: "maison"})
	})
	mux.HandleFunc("GET /sites/{site}/pages", func(w http.ResponseWriter, r *http.Request) {
		f.calls["pages"]++
		offset, limit := window(r)
		writeJSON(w, pagesResp{Pages: slice(f.pages, offset, limit), Pagination: pagination{Limit: limit, Offset: offset, Total: len(f.pages)}})
	})
	mux.HandleFunc("GET /pages/{page}/dom", func(w http.ResponseWriter, r *http.Request) {
		f.calls["dom"]++
		nodes := f.dom[r.PathValue("page")]
		offset, limit := window(r)
		writeJSON(w, domResp{PageID: r.PathValue("page"), Nodes: slice(nodes, offset, limit), Pagination: pagination{Limit: limit, Offset: offset, Total: len(nodes)}})
	})
	mux.HandleFunc("POST /pages/{page}/dom", func(w http.ResponseWriter, r *http.Request) {
		f.calls["update"]++
		var req domUpdateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decode update: %v", err)
		}
		id := r.PathValue("page")
		f.updates[id] = append(f.updates[id], req.Nodes...)
		writeJSON(w, map[string]any{"errors": []string{}})
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid token"}`))
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func window(r *http.Request) (int, int) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return offset, limit
}

func slice[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := min(len(all), offset+limit)
	return all[offset:end]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, api *fakeAPI, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	fc := newFakeClock()
	return New(token, WithBaseURL(srv.URL), WithTransportOptions(TransportOptions{
		RetryMax:   1,
		Clock:      fc,
		Metrics:    NewMetrics(),
		HostLimits: map[string]Limit{srv.Listener.Addr().String(): {RPS: 1000, Burst: 1000}},
	}))
}

func TestGetSite(t *testing.T) {
	c := newTestClient(t, newFakeAPI(t), "secret")
	s, err := c.GetSite(context.Background(), "site-1")
	if err != nil {
		t.Fatalf("GetSite: %v", err)
	}
	if s.DisplayName != "Maison" || s.ShortName != "maison" {
		t.Fatalf("site = %+v", s)
	}
}

func TestAPIErrorCarriesStatusAndMessage(t *testing.T) {
	c := newTestClient(t, newFakeAPI(t), "secret")
	_, err := c.GetSite(context.Background(), "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Site not found" || apiErr.Op != "site.get" {
		t.Fatalf("api error = %+v", apiErr)
	}
}

func TestEmptyTokenFailsFast(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, "")
	if _, err := c.ListPages(context.Background(), "site-1"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if api.calls["pages"] != 0 {
		t.Fatal("no request expected without a token")
	}
}

func TestListPagesPagination(t *testing.T) {
	api := newFakeAPI(t)
	for i := 0; i < 150; i++ {
		api.pages = append(api.pages, Page{ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("Page %d", i), Slug: fmt.Sprintf("page-%d", i)})
	}
	c := newTestClient(t, api, "secret")

	pages, err := c.ListPages(context.Background(), "site-1")
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if len(pages) != 150 || pages[149].ID != "p149" {
		t.Fatalf("got %d pages", len(pages))
	}
	if api.calls["pages"] != 2 {
		t.Fatalf("expected 2 calls, got %d", api.calls["pages"])
	}
	if snap := c.Metrics().Snapshot(); snap.ReadRequests != 2 || snap.Status2xx != 2 {
		t.Fatalf("metrics = %+v", snap)
	}
}

func TestGetPageDOMAndUpdate(t *testing.T) {
	api := newFakeAPI(t)
	api.dom["home"] = []Node{
		{ID: "n1", Type: "text", Text: &NodeText{HTML: "<p>Hi</p>", Text: "Hi"}, Attributes: map[string]string{"data-wording-key": "title"}},
		{ID: "n2", Type: "image"},
	}
	c := newTestClient(t, api, "secret")

	nodes, err := c.GetPageDOM(context.Background(), "home")
	if err != nil {
		t.Fatalf("GetPageDOM: %v", err)
	}
	if len(nodes) != 2 || nodes[0].Attributes["data-wording-key"] != "title" || nodes[1].Text != nil {
		t.Fatalf("nodes = %+v", nodes)
	}

	if err := c.UpdatePageDOM(context.Background(), "home", []NodeUpdate{{NodeID: "n1", Text: "Bonjour"}}); err != nil {
		t.Fatalf("UpdatePageDOM: %v", err)
	}
	if got := api.updates["home"]; len(got) != 1 || got[0] != (NodeUpdate{NodeID: "n1", Text: "Bonjour"}) {
		t.Fatalf("updates = %+v", got)
	}
	if err := c.UpdatePageDOM(context.Background(), "home", nil); err != nil || api.calls["update"] != 1 {
		t.Fatalf("empty update must be a no-op: %v", err)
	}
}
