package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/wikitoc/internal/config"
	"github.com/dgallion1/wikitoc/internal/remote"
	"github.com/dgallion1/wikitoc/internal/wikipage"
)

const testKey = "test-key"

func newTestServer(t *testing.T) (*httptest.Server, *wikipage.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		WikiAPIKey:     testKey,
		WikiRootName:   "RooT",
		MaxUploadBytes: 1 << 20,
	}
	store := wikipage.NewStore(cfg.WikiRootName)
	rc := remote.NewClient(2*time.Second, 0, time.Hour, log)
	srv := httptest.NewServer(NewServer(store, rc, log, cfg))
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, method, u string, body io.Reader, contentType string, auth bool) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, u, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, string(raw)
}

func putPage(t *testing.T, base, path, content string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"content": content})
	resp, raw := do(t, http.MethodPut, base+"/api/pages/"+path, bytes.NewReader(body), "application/json", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put %s: status %d: %s", path, resp.StatusCode, raw)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/health", nil, "", false)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Errorf("unexpected health response %d %s", resp.StatusCode, body)
	}
}

func TestPutRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := do(t, http.MethodPut, srv.URL+"/api/pages/ParenT", strings.NewReader(`{"content":"x"}`), "application/json", false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPageTOC(t *testing.T) {
	srv, _ := newTestServer(t)
	putPage(t, srv.URL, "ParenT", "!contents -R\n")
	putPage(t, srv.URL, "ParenT.ChildOne.GrandChild", "")
	putPage(t, srv.URL, "ParenT.ChildTwo", "")

	resp, body := do(t, http.MethodGet, srv.URL+"/api/pages/ParenT/toc", nil, "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if strings.Contains(body, "toc2") {
		t.Errorf("default directive should not recurse:\n%s", body)
	}

	q := url.Values{"directive": {"!contents -R -g"}}.Encode()
	resp, body = do(t, http.MethodGet, srv.URL+"/api/pages/ParenT/toc?"+q, nil, "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	for _, want := range []string{`<div class="toc2">`, `<a href="ParenT.ChildOne.GrandChild">Grand Child</a>`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in:\n%s", want, body)
		}
	}

	q = url.Values{"directive": {"!contents zap"}}.Encode()
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/pages/ParenT/toc?"+q, nil, "", false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-directive, got %d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/pages/MissingPage/toc", nil, "", false)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for a missing page, got %d", resp.StatusCode)
	}
}

func TestVirtualWikiAcrossServers(t *testing.T) {
	source, _ := newTestServer(t)
	putPage(t, source.URL, "ParenT.ChildOne", "")
	putPage(t, source.URL, "ParenT.ChildTwo", "")

	local, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{
		"content":      "!contents -R\n",
		"virtual_wiki": source.URL + "/ParenT",
	})
	resp, raw := do(t, http.MethodPut, local.URL+"/api/pages/VirtualParent", bytes.NewReader(body), "application/json", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put virtual page: %d %s", resp.StatusCode, raw)
	}

	resp, html := do(t, http.MethodGet, local.URL+"/api/pages/VirtualParent/html", nil, "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, html)
	}
	want := "<div class=\"toc1\">\n" +
		"\t<ul>\n" +
		"\t\t<li>\n" +
		"\t\t\t<a href=\"VirtualParent.ChildOne\">\n" +
		"\t\t\t\t<i>ChildOne</i>\n" +
		"\t\t\t</a>\n" +
		"\t\t</li>\n" +
		"\t\t<li>\n" +
		"\t\t\t<a href=\"VirtualParent.ChildTwo\">\n" +
		"\t\t\t\t<i>ChildTwo</i>\n" +
		"\t\t\t</a>\n" +
		"\t\t</li>\n" +
		"\t</ul>\n" +
		"</div>\n"
	if html != want {
		t.Errorf("unexpected virtual contents:\n%s", html)
	}

	resp, stats := do(t, http.MethodGet, local.URL+"/api/stats/remote", nil, "", false)
	if resp.StatusCode != http.StatusOK || !strings.Contains(stats, `"fetches":1`) {
		t.Errorf("expected one recorded fetch, got %s", stats)
	}
}

func TestVirtualWikiUnreachable(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{
		"content":      "!contents\n",
		"virtual_wiki": "http://127.0.0.1:1/ParenT",
	})
	do(t, http.MethodPut, srv.URL+"/api/pages/VirtualParent", bytes.NewReader(body), "application/json", true)

	resp, raw := do(t, http.MethodGet, srv.URL+"/api/pages/VirtualParent/html", nil, "", false)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d: %s", resp.StatusCode, raw)
	}
}

func TestChildrenAndDelete(t *testing.T) {
	srv, _ := newTestServer(t)
	putPage(t, srv.URL, "ParenT.ChildOne", "")
	putPage(t, srv.URL, "ParenT.ChildTwo", "")

	resp, _ := do(t, http.MethodDelete, srv.URL+"/api/pages/ParenT.ChildOne", nil, "", true)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	_, raw := do(t, http.MethodGet, srv.URL+"/api/children?page=ParenT", nil, "", false)
	var listing remote.ChildrenResponse
	if err := json.Unmarshal([]byte(raw), &listing); err != nil {
		t.Fatalf("decode: %v (%s)", err, raw)
	}
	if len(listing.Children) != 1 || listing.Children[0].Name != "ChildTwo" {
		t.Errorf("unexpected children %+v", listing.Children)
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/pages/RooT", nil, "", true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 deleting the root, got %d", resp.StatusCode)
	}
}

func TestImportMarkdown(t *testing.T) {
	srv, store := newTestServer(t)
	putPage(t, srv.URL, "ProjectDocs", "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "user-guide.md")
	fw.Write([]byte("# Getting Started\n\nInstall it.\n\n## First Steps\n\nRun it.\n"))
	mw.WriteField("title", "User Guide")
	mw.Close()

	resp, raw := do(t, http.MethodPost, srv.URL+"/api/pages/ProjectDocs/import", &buf, mw.FormDataContentType(), true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}
	if !strings.Contains(raw, `"page":"ProjectDocs.UserGuide"`) {
		t.Errorf("unexpected import response %s", raw)
	}
	if _, err := store.Find("ProjectDocs.UserGuide.GettingStarted.FirstSteps"); err != nil {
		t.Errorf("expected nested section page: %v", err)
	}

	_, html := do(t, http.MethodGet, srv.URL+"/api/pages/ProjectDocs.UserGuide/html", nil, "", false)
	if !strings.Contains(html, ">First Steps</a>") {
		t.Errorf("expected the imported page to list its sections regraced:\n%s", html)
	}
}
