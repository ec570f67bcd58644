package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/khanhdo2000/calibre-web-clone/internal/config"
	"github.com/khanhdo2000/calibre-web-clone/pkg/calibre"
	"github.com/khanhdo2000/calibre-web-clone/pkg/covers"
	"github.com/khanhdo2000/calibre-web-clone/pkg/health"
	"github.com/khanhdo2000/calibre-web-clone/pkg/librarycache"
)

type api struct {
	cfg       config.Config
	log       *slog.Logger
	store     *calibre.Store
	svc       *librarycache.Service
	covers    *covers.Storage
	libraryID string
}

func (a *api) router(checks health.Checks) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.cfg.RequestTimeout))

	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(checks, health.WithLogger(a.log)))

	r.Route("/api", func(r chi.Router) {
		r.Get("/books", a.listBooks)
		r.Get("/books/random", a.randomBooks)
		r.Get("/books/{id}", a.bookDetail)
		r.Get("/books/{id}/cover", a.bookCover)
		r.Get("/search", a.searchBooks)
		r.Get("/categories/{kind}", a.listCategories)
		r.Get("/cache/health", a.cacheHealth)
		r.Post("/admin/refresh", a.refresh)
	})

	return r
}

// requestIDExtractor surfaces chi's request ID on every log line made
// with a request context.
func requestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return slog.String("request_id", id), true
	}
	return slog.Attr{}, false
}

// requestLogger emits one structured line per request after it completes.
func (a *api) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.InfoContext(r.Context(), "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type apiError struct {
	Error string `json:"error"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, apiError{Error: msg})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryInt64(r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (a *api) clampPerPage(n int) int {
	if n < 1 {
		return 20
	}
	if n > a.cfg.MaxSearchResults {
		return a.cfg.MaxSearchResults
	}
	return n
}

func (a *api) listBooks(w http.ResponseWriter, r *http.Request) {
	params := calibre.ListParams{
		Page:    queryInt(r, "page", 1),
		PerPage: a.clampPerPage(queryInt(r, "per_page", 20)),
		Sort:    r.URL.Query().Get("sort"),
	}

	terms := map[string]string{}
	if id, ok := queryInt64(r, "author"); ok {
		params.AuthorID = id
		terms["author"] = strconv.FormatInt(id, 10)
	}
	if id, ok := queryInt64(r, "series"); ok {
		params.SeriesID = id
		terms["series"] = strconv.FormatInt(id, 10)
	}
	if id, ok := queryInt64(r, "tag"); ok {
		params.TagID = id
		terms["tag"] = strconv.FormatInt(id, 10)
	}
	if id, ok := queryInt64(r, "publisher"); ok {
		params.PublisherID = id
		terms["publisher"] = strconv.FormatInt(id, 10)
	}

	q := librarycache.Query{
		Op:      "list",
		Page:    params.Page,
		PerPage: params.PerPage,
		Sort:    params.Sort,
		Terms:   terms,
	}

	page, err := librarycache.GetOrCompute(r.Context(), a.svc, a.libraryID, q, a.cfg.CacheTTL,
		func(ctx context.Context) (calibre.BookPage, error) {
			return a.store.ListBooks(ctx, params)
		})
	if err != nil {
		a.serveError(w, r, err)
		return
	}
	respond(w, http.StatusOK, page)
}

func (a *api) searchBooks(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		respondError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	page := queryInt(r, "page", 1)
	perPage := a.clampPerPage(queryInt(r, "per_page", 20))

	q := librarycache.Query{
		Op:      "search",
		Page:    page,
		PerPage: perPage,
		Terms:   map[string]string{"q": term},
	}

	result, err := librarycache.GetOrCompute(r.Context(), a.svc, a.libraryID, q, a.cfg.CacheTTL,
		func(ctx context.Context) (calibre.BookPage, error) {
			return a.store.SearchBooks(ctx, term, page, perPage)
		})
	if err != nil {
		a.serveError(w, r, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (a *api) bookDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	q := librarycache.Query{
		Op:    "detail",
		Terms: map[string]string{"id": strconv.FormatInt(id, 10)},
	}

	detail, err := librarycache.GetOrCompute(r.Context(), a.svc, a.libraryID, q, a.cfg.CacheTTL,
		func(ctx context.Context) (*calibre.BookDetail, error) {
			return a.store.BookDetail(ctx, id)
		})
	if err != nil {
		a.serveError(w, r, err)
		return
	}
	respond(w, http.StatusOK, detail)
}

func (a *api) bookCover(w http.ResponseWriter, r *http.Request) {
	if a.covers == nil {
		respondError(w, http.StatusNotFound, "cover storage not configured")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	q := librarycache.Query{
		Op:    "detail",
		Terms: map[string]string{"id": strconv.FormatInt(id, 10)},
	}
	detail, err := librarycache.GetOrCompute(r.Context(), a.svc, a.libraryID, q, a.cfg.CacheTTL,
		func(ctx context.Context) (*calibre.BookDetail, error) {
			return a.store.BookDetail(ctx, id)
		})
	if err != nil {
		a.serveError(w, r, err)
		return
	}

	if a.cfg.Covers.Proxy {
		a.streamCover(w, r, detail.Path)
		return
	}

	url, err := a.covers.URL(r.Context(), detail.Path, covers.DefaultURLExpiry)
	if err != nil {
		if errors.Is(err, covers.ErrNotFound) {
			respondError(w, http.StatusNotFound, "cover not found")
			return
		}
		a.serveError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// streamCover proxies the cover bytes through the server, for
// deployments where clients cannot reach the bucket directly.
func (a *api) streamCover(w http.ResponseWriter, r *http.Request, bookPath string) {
	body, err := a.covers.Get(r.Context(), bookPath)
	if err != nil {
		if errors.Is(err, covers.ErrNotFound) {
			respondError(w, http.StatusNotFound, "cover not found")
			return
		}
		a.serveError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := io.Copy(w, body); err != nil {
		a.log.WarnContext(r.Context(), "cover stream interrupted",
			slog.String("path", bookPath), slog.String("error", err.Error()))
	}
}

func (a *api) randomBooks(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 12)
	if limit < 1 || limit > 48 {
		limit = 12
	}
	// Deliberately uncached: a cached random selection is not random.
	books, err := a.store.RandomBooks(r.Context(), limit)
	if err != nil {
		a.serveError(w, r, err)
		return
	}
	respond(w, http.StatusOK, books)
}

func (a *api) listCategories(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	var fetch func(ctx context.Context) ([]calibre.Category, error)
	switch kind {
	case "authors":
		fetch = a.store.Authors
	case "tags":
		fetch = a.store.Tags
	case "series":
		fetch = a.store.SeriesList
	case "publishers":
		fetch = a.store.Publishers
	default:
		respondError(w, http.StatusNotFound, "unknown category kind")
		return
	}

	q := librarycache.Query{
		Op:    "categories",
		Terms: map[string]string{"kind": kind},
	}
	cats, err := librarycache.GetOrCompute(r.Context(), a.svc, a.libraryID, q, a.cfg.CacheTTL, fetch)
	if err != nil {
		a.serveError(w, r, err)
		return
	}
	respond(w, http.StatusOK, cats)
}

func (a *api) cacheHealth(w http.ResponseWriter, r *http.Request) {
	status := a.svc.Health(r.Context())
	respond(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	gen, err := a.svc.ForceBump(r.Context(), a.libraryID)
	if err != nil {
		a.serveError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]int64{"generation": gen})
}

func (a *api) serveError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, calibre.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, librarycache.ErrInvalidParams):
		respondError(w, http.StatusBadRequest, "invalid parameters")
	default:
		a.log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
