// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdflens/internal/engine"
	"github.com/pdflens/internal/events"
	"github.com/pdflens/internal/extract"
	"github.com/pdflens/internal/view"
)

const (
	goodPDF   = "%PDF-1.4 good"
	brokenPDF = "%PDF-1.4 broken"
)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	return newLimitedTestServer(t, 1<<20)
}

func newLimitedTestServer(t *testing.T, maxBytes int64) (*httptest.Server, *http.Client) {
	t.Helper()

	fx := &engine.Fixture{
		Default: engine.FixtureDoc{Pages: [][]engine.TextItem{{engine.Item("Hello", 72, 720)}}},
		Docs: map[string]engine.FixtureDoc{
			brokenPDF: {OpenErr: engine.ErrMalformed},
		},
	}
	x := extract.NewExtractor(fx, 0)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sessions := view.NewSessions(time.Minute, func() *view.Controller {
		return view.NewController(ctx, x, nil)
	})
	srv := httptest.NewServer(NewServer(ctx, sessions, extract.NewLoader(maxBytes), fx.Name()).Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func uploadBody(t *testing.T, name, content string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		fw, err := mw.CreateFormFile(extract.FormField, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postFile(t *testing.T, c *http.Client, url, name, content string) *http.Response {
	t.Helper()
	return postViewFile(t, c, url, "", name, content)
}

func postViewFile(t *testing.T, c *http.Client, url, id, name, content string) *http.Response {
	t.Helper()

	body, contentType := uploadBody(t, name, content)
	req, err := http.NewRequest(http.MethodPost, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if id != "" {
		req.Header.Set(ViewHeader, id)
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getSnapshot(t *testing.T, c *http.Client, base string) view.Snapshot {
	t.Helper()
	return getViewSnapshot(t, c, base, "")
}

// getViewSnapshot reads the records of an explicit view; an empty id falls back to the cookie
func getViewSnapshot(t *testing.T, c *http.Client, base, id string) view.Snapshot {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, base+"/api/records", nil)
	require.NoError(t, err)
	if id != "" {
		req.Header.Set(ViewHeader, id)
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap view.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func TestIndex_RendersEmptyTableAndSetsCookie(t *testing.T) {
	srv, c := newTestServer(t)

	resp, err := c.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)

	assert.Contains(t, page, "<title>"+PageTitle+"</title>")
	assert.Contains(t, page, `accept="application/pdf"`)
	assert.Contains(t, page, "Extracted Text and Coordinates:")
	for _, col := range view.Columns {
		assert.Contains(t, page, "<th>"+col+"</th>")
	}
	assert.NotContains(t, page, "<td>")

	var found bool
	for _, ck := range resp.Cookies() {
		if ck.Name == ViewCookie {
			found = true
		}
	}
	assert.True(t, found, "view cookie not set")
}

func TestIndex_UnknownPath(t *testing.T) {
	srv, c := newTestServer(t)

	resp, err := c.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExtract_WaitReturnsRecords(t *testing.T) {
	srv, c := newTestServer(t)

	resp := postFile(t, c, srv.URL+"/api/extract?wait=true", "hello.pdf", goodPDF)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		File    string           `json:"file"`
		Records []extract.Record `json:"records"`
		Count   int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "hello.pdf", out.File)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, []extract.Record{{Text: "Hello", X: 72, Y: 720}}, out.Records)

	snap := getSnapshot(t, c, srv.URL)
	assert.Equal(t, out.Records, snap.Records)
	assert.Nil(t, snap.Error)

	table, err := c.Get(srv.URL + "/api/table")
	require.NoError(t, err)
	defer table.Body.Close()
	html, err := io.ReadAll(table.Body)
	require.NoError(t, err)
	assert.Contains(t, string(html), `<tr data-index="0"><td>Hello</td><td>72</td><td>720</td></tr>`)
}

func TestExtract_AcceptedWithoutWait(t *testing.T) {
	srv, c := newTestServer(t)

	resp := postFile(t, c, srv.URL+"/api/extract", "hello.pdf", goodPDF)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "accepted", out["status"])
	assert.Equal(t, "hello.pdf", out["file"])

	assert.Eventually(t, func() bool {
		return len(getSnapshot(t, c, srv.URL).Records) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestExtract_NoFileIsNoOp(t *testing.T) {
	srv, c := newTestServer(t)

	postFile(t, c, srv.URL+"/api/extract?wait=true", "hello.pdf", goodPDF)

	resp := postFile(t, c, srv.URL+"/api/extract", "", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	snap := getSnapshot(t, c, srv.URL)
	assert.Len(t, snap.Records, 1)
	assert.Nil(t, snap.Error)
}

func TestExtract_NotPDFKeepsRecords(t *testing.T) {
	srv, c := newTestServer(t)

	postFile(t, c, srv.URL+"/api/extract?wait=true", "hello.pdf", goodPDF)

	resp := postFile(t, c, srv.URL+"/api/extract", "notes.txt", "just some text")
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	snap := getSnapshot(t, c, srv.URL)
	assert.Len(t, snap.Records, 1)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "notes.txt", snap.Error.File)
}

func TestExtract_MalformedPDF(t *testing.T) {
	srv, c := newTestServer(t)

	resp := postFile(t, c, srv.URL+"/api/extract?wait=true", "broken.pdf", brokenPDF)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	snap := getSnapshot(t, c, srv.URL)
	assert.Empty(t, snap.Records)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "broken.pdf", snap.Error.File)
}

func TestExtract_MethodNotAllowed(t *testing.T) {
	srv, c := newTestServer(t)

	resp, err := c.Get(srv.URL + "/api/extract")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDismissError(t *testing.T) {
	srv, c := newTestServer(t)

	postFile(t, c, srv.URL+"/api/extract", "notes.txt", "plain text")
	require.NotNil(t, getSnapshot(t, c, srv.URL).Error)

	resp, err := c.Post(srv.URL+"/api/error/dismiss", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out["dismissed"])
	assert.Nil(t, getSnapshot(t, c, srv.URL).Error)
}

func TestViewsAreSeparatePerClient(t *testing.T) {
	srv, a := newTestServer(t)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	b := &http.Client{Jar: jar, Timeout: 5 * time.Second}

	postFile(t, a, srv.URL+"/api/extract?wait=true", "hello.pdf", goodPDF)

	assert.Len(t, getSnapshot(t, a, srv.URL).Records, 1)
	assert.Empty(t, getSnapshot(t, b, srv.URL).Records)
}

func loadPage(t *testing.T, c *http.Client, base string) (string, string) {
	t.Helper()

	resp, err := c.Get(base + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	id := resp.Header.Get(ViewHeader)
	require.NotEmpty(t, id)
	return id, string(body)
}

func TestIndex_EachPageLoadIsItsOwnView(t *testing.T) {
	srv, c := newTestServer(t)

	first, page := loadPage(t, c, srv.URL)
	assert.Contains(t, page, `data-view="`+first+`"`)
	second, _ := loadPage(t, c, srv.URL)
	require.NotEqual(t, first, second)

	resp := postViewFile(t, c, srv.URL+"/api/extract?wait=true", first, "hello.pdf", goodPDF)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first, resp.Header.Get(ViewHeader))

	assert.Len(t, getViewSnapshot(t, c, srv.URL, first).Records, 1)
	assert.Empty(t, getViewSnapshot(t, c, srv.URL, second).Records)
	// Requests without an ID follow the cookie, which names the latest page
	assert.Empty(t, getSnapshot(t, c, srv.URL).Records)
}

func TestExtract_TooLargeNamesTheFile(t *testing.T) {
	srv, c := newLimitedTestServer(t, 1024)

	resp := postFile(t, c, srv.URL+"/api/extract", "big.pdf", goodPDF+strings.Repeat("x", 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	snap := getSnapshot(t, c, srv.URL)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "big.pdf", snap.Error.File)
	assert.Equal(t, "file too large: big.pdf exceeds 1024 bytes", snap.Error.Message)
}

func TestHealth(t *testing.T) {
	srv, c := newTestServer(t)

	resp, err := c.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "up", out["status"])
	assert.Equal(t, "fixture", out["engine"])
}

func TestStaticAssets(t *testing.T) {
	srv, c := newTestServer(t)

	for _, name := range []string{"app.js", "style.css"} {
		resp, err := c.Get(srv.URL + "/static/" + name)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, name)
	}

	// The page template is only reachable rendered
	resp, err := c.Get(srv.URL + "/static/index.html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocket_PushesReplacedTable(t *testing.T) {
	srv, c := newTestServer(t)

	id, _ := loadPage(t, c, srv.URL)
	// A later tab moves the cookie; the socket and upload still name the first page
	loadPage(t, c, srv.URL)

	dialer := websocket.Dialer{Jar: c.Jar, HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws?"+ViewParam+"="+id, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, id, resp.Header.Get(ViewHeader))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first PushMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)
	assert.Zero(t, first.Count)

	postViewFile(t, c, srv.URL+"/api/extract", id, "hello.pdf", goodPDF)

	var next PushMessage
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, events.RecordsReplaced, next.Type)
	assert.Equal(t, 1, next.Count)
	assert.Greater(t, next.Version, first.Version)
	assert.Contains(t, next.HTML, "<td>Hello</td>")
	assert.Nil(t, next.Error)
}
