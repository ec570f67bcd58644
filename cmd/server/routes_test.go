package main

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/khanhdo2000/calibre-web-clone/internal/config"
	"github.com/khanhdo2000/calibre-web-clone/pkg/cache"
	"github.com/khanhdo2000/calibre-web-clone/pkg/calibre"
	"github.com/khanhdo2000/calibre-web-clone/pkg/covers"
	"github.com/khanhdo2000/calibre-web-clone/pkg/health"
	"github.com/khanhdo2000/calibre-web-clone/pkg/library"
	"github.com/khanhdo2000/calibre-web-clone/pkg/librarycache"
	"github.com/khanhdo2000/calibre-web-clone/pkg/logger"
)

const testDB = `
CREATE TABLE books (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	sort TEXT DEFAULT '',
	path TEXT NOT NULL DEFAULT '',
	has_cover INTEGER NOT NULL DEFAULT 0,
	uuid TEXT,
	isbn TEXT,
	pubdate TEXT,
	timestamp TEXT,
	last_modified TEXT,
	series_index REAL NOT NULL DEFAULT 1.0
);
CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE books_authors_link (id INTEGER PRIMARY KEY, book INTEGER, author INTEGER);
CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE books_tags_link (id INTEGER PRIMARY KEY, book INTEGER, tag INTEGER);
CREATE TABLE series (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE books_series_link (id INTEGER PRIMARY KEY, book INTEGER, series INTEGER);
CREATE TABLE publishers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE books_publishers_link (id INTEGER PRIMARY KEY, book INTEGER, publisher INTEGER);
CREATE TABLE comments (id INTEGER PRIMARY KEY, book INTEGER, text TEXT);
CREATE TABLE ratings (id INTEGER PRIMARY KEY, rating INTEGER);
CREATE TABLE books_ratings_link (id INTEGER PRIMARY KEY, book INTEGER, rating INTEGER);
CREATE TABLE data (id INTEGER PRIMARY KEY, book INTEGER, format TEXT);
CREATE TABLE languages (id INTEGER PRIMARY KEY, lang_code TEXT);
CREATE TABLE books_languages_link (id INTEGER PRIMARY KEY, book INTEGER, lang_code INTEGER);
CREATE TABLE identifiers (id INTEGER PRIMARY KEY, book INTEGER, type TEXT, val TEXT);

INSERT INTO books (id, title, path, timestamp) VALUES
	(1, 'Dune', 'Frank Herbert/Dune (1)', '2024-03-01 10:00:00'),
	(2, 'Emma', 'Jane Austen/Emma (2)', '2024-01-01 10:00:00');
INSERT INTO authors (id, name) VALUES (1, 'Frank Herbert'), (2, 'Jane Austen');
INSERT INTO books_authors_link (id, book, author) VALUES (1, 1, 1), (2, 2, 2);
INSERT INTO tags (id, name) VALUES (1, 'scifi');
INSERT INTO books_tags_link (id, book, tag) VALUES (1, 1, 1);
`

func newTestServer(t *testing.T, mods ...func(*api)) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	handle := library.New(dir)

	db, err := sql.Open("sqlite", handle.DatabasePath())
	require.NoError(t, err)
	_, err = db.Exec(testDB)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := calibre.Open(handle.DatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	entries := cache.NewMemory[json.RawMessage]()
	t.Cleanup(func() { _ = entries.Close() })

	svc := librarycache.New(entries,
		librarycache.NewGenerations(cache.NewMemoryCounter()),
		librarycache.WithWatcherStatus(func() string {
			return string(librarycache.StatusWatching)
		}),
	)

	a := &api{
		cfg: config.Config{
			CacheTTL:         time.Minute,
			RequestTimeout:   5 * time.Second,
			MaxSearchResults: 100,
		},
		log:       logger.NewNope(),
		store:     store,
		svc:       svc,
		libraryID: handle.ID(),
	}
	for _, mod := range mods {
		mod(a)
	}

	checks := health.Checks{"calibre": store.Healthcheck()}
	srv := httptest.NewServer(a.router(checks))
	t.Cleanup(srv.Close)

	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPI_Books(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	t.Run("list", func(t *testing.T) {
		var page calibre.BookPage
		code := getJSON(t, srv.URL+"/api/books", &page)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, int64(2), page.Total)
		require.Equal(t, "Dune", page.Books[0].Title)
	})

	t.Run("list with author filter", func(t *testing.T) {
		var page calibre.BookPage
		code := getJSON(t, srv.URL+"/api/books?author=2", &page)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, int64(1), page.Total)
		require.Equal(t, "Emma", page.Books[0].Title)
	})

	t.Run("per_page is clamped", func(t *testing.T) {
		var page calibre.BookPage
		code := getJSON(t, srv.URL+"/api/books?per_page=100000", &page)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, 100, page.PerPage)
	})

	t.Run("detail", func(t *testing.T) {
		var detail calibre.BookDetail
		code := getJSON(t, srv.URL+"/api/books/1", &detail)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "Dune", detail.Title)
	})

	t.Run("detail unknown id is 404", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/api/books/999", nil)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("detail bad id is 400", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/api/books/abc", nil)
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("random", func(t *testing.T) {
		var books []calibre.Book
		code := getJSON(t, srv.URL+"/api/books/random?limit=1", &books)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, books, 1)
	})

	t.Run("cover without storage is 404", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/api/books/1/cover", nil)
		require.Equal(t, http.StatusNotFound, code)
	})
}

func TestAPI_CoverProxy(t *testing.T) {
	t.Parallel()

	// Fake S3 endpoint: book 1's cover exists, everything else is missing.
	bucket := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/library-covers/covers/Frank Herbert/Dune (1)/cover.jpg" {
			_, _ = io.WriteString(w, "jpeg bytes")
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
	}))
	t.Cleanup(bucket.Close)

	storage, err := covers.New(covers.Config{
		Bucket:    "library-covers",
		AccessKey: "test-key",
		SecretKey: "test-secret",
		Endpoint:  bucket.URL,
		Prefix:    "covers",
		PathStyle: true,
	})
	require.NoError(t, err)

	srv := newTestServer(t, func(a *api) {
		a.covers = storage
		a.cfg.Covers.Proxy = true
	})

	t.Run("streams the cover through the server", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/books/1/cover")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, "jpeg bytes", string(body))
	})

	t.Run("missing cover is 404", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/api/books/2/cover", nil)
		require.Equal(t, http.StatusNotFound, code)
	})
}

func TestAPI_Search(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	t.Run("matches", func(t *testing.T) {
		var page calibre.BookPage
		code := getJSON(t, srv.URL+"/api/search?q=dune", &page)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, int64(1), page.Total)
	})

	t.Run("missing q is 400", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/api/search", nil)
		require.Equal(t, http.StatusBadRequest, code)
	})
}

func TestAPI_Categories(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	t.Run("tags", func(t *testing.T) {
		var cats []calibre.Category
		code := getJSON(t, srv.URL+"/api/categories/tags", &cats)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, []calibre.Category{{ID: 1, Name: "scifi", Count: 1}}, cats)
	})

	t.Run("unknown kind is 404", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/api/categories/bogus", nil)
		require.Equal(t, http.StatusNotFound, code)
	})
}

func TestAPI_Operational(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	t.Run("liveness", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/healthz?format=json", nil)
		require.Equal(t, http.StatusOK, code)
	})

	t.Run("readiness", func(t *testing.T) {
		var resp health.Response
		code := getJSON(t, srv.URL+"/readyz?format=json", &resp)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, health.StatusHealthy, resp.Status)
	})

	t.Run("cache health", func(t *testing.T) {
		var resp map[string]string
		code := getJSON(t, srv.URL+"/api/cache/health", &resp)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, string(librarycache.StatusWatching), resp["status"])
	})

	t.Run("refresh bumps the generation", func(t *testing.T) {
		var first map[string]int64
		resp, err := http.Post(srv.URL+"/api/admin/refresh", "application/json", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
		resp.Body.Close()

		var second map[string]int64
		resp, err = http.Post(srv.URL+"/api/admin/refresh", "application/json", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))
		resp.Body.Close()

		require.Greater(t, second["generation"], first["generation"])
	})

	t.Run("refresh invalidates cached listings", func(t *testing.T) {
		var before calibre.BookPage
		require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/books", &before))

		resp, err := http.Post(srv.URL+"/api/admin/refresh", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var after calibre.BookPage
		require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/books", &after))
		require.Equal(t, before.Total, after.Total)
	})
}
