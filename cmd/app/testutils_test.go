package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/sushihentaime/devlog/internal/contactservice"
	"github.com/sushihentaime/devlog/internal/contentservice"
	"github.com/sushihentaime/devlog/internal/mailservice"
	"github.com/sushihentaime/devlog/internal/newsletterservice"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAdminUser     = "admin"
	testAdminPassword = "correct horse battery staple"
)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	ts := httptest.NewServer(h)

	t.Cleanup(ts.Close)

	return &testServer{ts}
}

func readResponse(t *testing.T, res *http.Response) (int, http.Header, envelope) {
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	var envelope envelope
	err = json.Unmarshal(responseBody, &envelope)
	if err != nil {
		t.Fatal(err)
	}

	return res.StatusCode, res.Header, envelope
}

func postRecord(id, postType, slug, publishedAt string, tags ...string) *fstest.MapFile {
	if tags == nil {
		tags = []string{}
	}

	data, _ := json.Marshal(map[string]any{
		"id":          id,
		"slug":        slug,
		"title":       "Post " + id,
		"type":        postType,
		"summary":     "Summary of post " + id,
		"body":        fmt.Sprintf("# Post %s\n\nHello from **%s**.\n\n```go main.go\npackage main\n```\n", id, slug),
		"tags":        tags,
		"author":      "Ada",
		"status":      "published",
		"publishedAt": publishedAt,
		"createdAt":   "2024-01-01T00:00:00Z",
		"updatedAt":   "2024-01-01T00:00:00Z",
		"heroImage":   "/img/" + slug + ".png",
	})

	return &fstest.MapFile{Data: data}
}

func testContent() fstest.MapFS {
	return fstest.MapFS{
		"blog/1.json": postRecord("1", "blog", "first-post", "2024-01-10T00:00:00Z", "go", "web"),
		"blog/2.json": postRecord("2", "blog", "second-post", "2024-02-10T00:00:00Z", "go"),
		"blog/3.json": postRecord("3", "blog", "third-post", "2024-03-10T00:00:00Z", "rust"),
		"news/4.json": postRecord("4", "news", "launch", "2024-04-10T00:00:00Z", "release"),
		"news/5.json": postRecord("5", "news", "future", "2999-01-01T00:00:00Z"),
	}
}

type testApp struct {
	*application
	store  *newsletterservice.FileStore
	sender *mailservice.MockSender
}

func newTestApplication(t *testing.T) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		Port:              "4000",
		Environment:       "development",
		Version:           "1.0.0",
		SiteURL:           "https://example.com",
		NewsletterBackend: backendFile,
		NewsletterName:    "The Upkeep",
		ContactEmail:      "owner@example.com",
		TrustedOrigins:    []string{"https://example.com"},
		AdminUser:         testAdminUser,
		AdminPasswordHash: string(hash),
	}

	store := newsletterservice.NewFileStore(filepath.Join(t.TempDir(), "subscribers.json"))
	sender := new(mailservice.MockSender)

	app := &application{
		config:     cfg,
		logger:     logger,
		content:    contentservice.NewContentService(testContent(), nil, logger),
		newsletter: newsletterservice.NewNewsletterService(store, sender, nil, logger, cfg.SiteURL, cfg.NewsletterName),
		contact:    contactservice.NewContactService(sender, cfg.ContactEmail, logger),
	}

	return &testApp{application: app, store: store, sender: sender}
}

func (ts *testServer) post(t *testing.T, path string, data any) (int, http.Header, envelope) {
	jsonPayload, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(jsonPayload))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}

func (ts *testServer) postRaw(t *testing.T, path, body string) (int, http.Header, envelope) {
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}

func (ts *testServer) get(t *testing.T, path string) (int, http.Header, envelope) {
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}

func (ts *testServer) getWithBasicAuth(t *testing.T, path, user, password string) (int, http.Header, envelope) {
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.SetBasicAuth(user, password)

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}
