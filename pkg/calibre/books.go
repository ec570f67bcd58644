package calibre

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const defaultPerPage = 20

// bookColumns are the scan targets shared by every book query.
const bookColumns = `b.id, b.title, b.path, b.has_cover, COALESCE(b.uuid, ''),
	COALESCE(b.isbn, ''), COALESCE(b.pubdate, ''), COALESCE(b.timestamp, ''),
	COALESCE(b.last_modified, ''), COALESCE(b.series_index, 1.0)`

// orderClause maps a sort key to SQL. Unknown keys fall back to newest
// first, matching the web UI's default.
func orderClause(sort string) string {
	switch sort {
	case SortOld:
		return "b.timestamp ASC"
	case SortTitleAZ:
		return "COALESCE(NULLIF(b.sort, ''), b.title) COLLATE NOCASE ASC"
	case SortTitleZA:
		return "COALESCE(NULLIF(b.sort, ''), b.title) COLLATE NOCASE DESC"
	case SortPubNew:
		return "b.pubdate DESC"
	case SortPubOld:
		return "b.pubdate ASC"
	case SortSeriesAsc:
		return "b.series_index ASC"
	case SortSeriesDesc:
		return "b.series_index DESC"
	case SortAuthorAZ:
		return firstAuthorExpr + " ASC, b.title ASC"
	case SortAuthorZA:
		return firstAuthorExpr + " DESC, b.title DESC"
	case SortNew:
		fallthrough
	default:
		return "b.timestamp DESC"
	}
}

// firstAuthorExpr sorts multi-author books by their first author name.
const firstAuthorExpr = `(SELECT MIN(a.name) FROM books_authors_link l
	JOIN authors a ON a.id = l.author WHERE l.book = b.id)`

// ListBooks returns one page of books with optional filters applied.
func (s *Store) ListBooks(ctx context.Context, p ListParams) (BookPage, error) {
	page, perPage := normalizePage(p.Page, p.PerPage)

	var (
		where []string
		args  []any
	)

	if p.AuthorID > 0 {
		where = append(where, "b.id IN (SELECT book FROM books_authors_link WHERE author = ?)")
		args = append(args, p.AuthorID)
	}
	if p.SeriesID > 0 {
		where = append(where, "b.id IN (SELECT book FROM books_series_link WHERE series = ?)")
		args = append(args, p.SeriesID)
	}
	if p.PublisherID > 0 {
		where = append(where, "b.id IN (SELECT book FROM books_publishers_link WHERE publisher = ?)")
		args = append(args, p.PublisherID)
	}
	switch {
	case p.TagID == -1:
		// Books that have no tag at all.
		where = append(where, "b.id NOT IN (SELECT book FROM books_tags_link)")
	case p.TagID > 0:
		where = append(where, "b.id IN (SELECT book FROM books_tags_link WHERE tag = ?)")
		args = append(args, p.TagID)
	}

	return s.queryPage(ctx, where, args, orderClause(p.Sort), page, perPage)
}

// SearchBooks returns books whose title, author, tag, or series
// matches the term, newest first. Matching is case-insensitive
// substring.
func (s *Store) SearchBooks(ctx context.Context, term string, page, perPage int) (BookPage, error) {
	page, perPage = normalizePage(page, perPage)

	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"

	where := []string{`(
		lower(b.title) LIKE ? ESCAPE '\'
		OR b.id IN (SELECT l.book FROM books_authors_link l
			JOIN authors a ON a.id = l.author WHERE lower(a.name) LIKE ? ESCAPE '\')
		OR b.id IN (SELECT l.book FROM books_tags_link l
			JOIN tags t ON t.id = l.tag WHERE lower(t.name) LIKE ? ESCAPE '\')
		OR b.id IN (SELECT l.book FROM books_series_link l
			JOIN series sr ON sr.id = l.series WHERE lower(sr.name) LIKE ? ESCAPE '\')
	)`}
	args := []any{pattern, pattern, pattern, pattern}

	return s.queryPage(ctx, where, args, orderClause(SortNew), page, perPage)
}

// RandomBooks returns up to limit books in random order. Results are
// intentionally different on every call, so callers should not cache
// them.
func (s *Store) RandomBooks(ctx context.Context, limit int) ([]Book, error) {
	if limit <= 0 {
		limit = defaultPerPage
	}

	q := fmt.Sprintf("SELECT %s FROM books b ORDER BY random() LIMIT ?", bookColumns)
	books, err := s.scanBooks(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

// BookDetail returns the full detail view of one book.
// Returns ErrNotFound when the id does not exist.
func (s *Store) BookDetail(ctx context.Context, id int64) (*BookDetail, error) {
	q := fmt.Sprintf("SELECT %s FROM books b WHERE b.id = ?", bookColumns)

	books, err := s.scanBooks(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, ErrNotFound
	}
	if err := s.enrich(ctx, books); err != nil {
		return nil, err
	}

	detail := &BookDetail{
		Book:        books[0],
		Formats:     []string{},
		Languages:   []string{},
		Identifiers: map[string]string{},
	}

	var comments sql.NullString
	err = s.db.QueryRowContext(ctx, "SELECT text FROM comments WHERE book = ?", id).Scan(&comments)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("calibre: load comments: %w", err)
	}
	detail.Comments = comments.String

	var rating sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT r.rating FROM ratings r
		 JOIN books_ratings_link l ON l.rating = r.id WHERE l.book = ?`, id).Scan(&rating)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("calibre: load rating: %w", err)
	}
	if rating.Valid {
		// Calibre stores ratings on a 0-10 scale; the UI shows 0-5 stars.
		detail.Rating = rating.Float64 / 2.0
	}

	rows, err := s.db.QueryContext(ctx, "SELECT format FROM data WHERE book = ? ORDER BY format", id)
	if err != nil {
		return nil, fmt.Errorf("calibre: load formats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var format string
		if err := rows.Scan(&format); err != nil {
			return nil, fmt.Errorf("calibre: scan format: %w", err)
		}
		detail.Formats = append(detail.Formats, strings.ToUpper(format))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calibre: iterate formats: %w", err)
	}

	langRows, err := s.db.QueryContext(ctx,
		`SELECT lg.lang_code FROM books_languages_link bl
		 JOIN languages lg ON lg.id = bl.lang_code WHERE bl.book = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("calibre: load languages: %w", err)
	}
	defer langRows.Close()
	for langRows.Next() {
		var code string
		if err := langRows.Scan(&code); err != nil {
			return nil, fmt.Errorf("calibre: scan language: %w", err)
		}
		detail.Languages = append(detail.Languages, code)
	}
	if err := langRows.Err(); err != nil {
		return nil, fmt.Errorf("calibre: iterate languages: %w", err)
	}

	identRows, err := s.db.QueryContext(ctx, "SELECT type, val FROM identifiers WHERE book = ?", id)
	if err != nil {
		return nil, fmt.Errorf("calibre: load identifiers: %w", err)
	}
	defer identRows.Close()
	for identRows.Next() {
		var typ, val string
		if err := identRows.Scan(&typ, &val); err != nil {
			return nil, fmt.Errorf("calibre: scan identifier: %w", err)
		}
		detail.Identifiers[typ] = val
	}
	if err := identRows.Err(); err != nil {
		return nil, fmt.Errorf("calibre: iterate identifiers: %w", err)
	}

	return detail, nil
}

// queryPage runs the shared count + page + enrich sequence.
func (s *Store) queryPage(ctx context.Context, where []string, args []any, order string, page, perPage int) (BookPage, error) {
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	countQ := "SELECT COUNT(*) FROM books b" + whereSQL
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return BookPage{}, fmt.Errorf("calibre: count books: %w", err)
	}

	pageQ := fmt.Sprintf("SELECT %s FROM books b%s ORDER BY %s LIMIT ? OFFSET ?",
		bookColumns, whereSQL, order)
	pageArgs := append(append([]any{}, args...), perPage, (page-1)*perPage)

	books, err := s.scanBooks(ctx, pageQ, pageArgs...)
	if err != nil {
		return BookPage{}, err
	}
	if err := s.enrich(ctx, books); err != nil {
		return BookPage{}, err
	}

	return BookPage{Books: books, Total: total, Page: page, PerPage: perPage}, nil
}

// scanBooks runs a query selecting bookColumns and scans the rows.
func (s *Store) scanBooks(ctx context.Context, query string, args ...any) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("calibre: query books: %w", err)
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Path, &b.HasCover, &b.UUID,
			&b.ISBN, &b.PubDate, &b.Timestamp, &b.LastModified, &b.SeriesIndex); err != nil {
			return nil, fmt.Errorf("calibre: scan book: %w", err)
		}
		b.Authors = []Author{}
		b.Tags = []Tag{}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calibre: iterate books: %w", err)
	}
	return books, nil
}

// enrich loads authors, tags, series, and publisher for each book.
func (s *Store) enrich(ctx context.Context, books []Book) error {
	if len(books) == 0 {
		return nil
	}

	index := make(map[int64]*Book, len(books))
	ids := make([]any, 0, len(books))
	for i := range books {
		index[books[i].ID] = &books[i]
		ids = append(ids, books[i].ID)
	}
	in := placeholders(len(ids))

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT l.book, a.id, a.name FROM books_authors_link l
		 JOIN authors a ON a.id = l.author WHERE l.book IN (%s) ORDER BY l.id`, in), ids...)
	if err != nil {
		return fmt.Errorf("calibre: load authors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var bookID int64
		var a Author
		if err := rows.Scan(&bookID, &a.ID, &a.Name); err != nil {
			return fmt.Errorf("calibre: scan author: %w", err)
		}
		if b, ok := index[bookID]; ok {
			b.Authors = append(b.Authors, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("calibre: iterate authors: %w", err)
	}

	tagRows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT l.book, t.id, t.name FROM books_tags_link l
		 JOIN tags t ON t.id = l.tag WHERE l.book IN (%s) ORDER BY t.name`, in), ids...)
	if err != nil {
		return fmt.Errorf("calibre: load tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var bookID int64
		var t Tag
		if err := tagRows.Scan(&bookID, &t.ID, &t.Name); err != nil {
			return fmt.Errorf("calibre: scan tag: %w", err)
		}
		if b, ok := index[bookID]; ok {
			b.Tags = append(b.Tags, t)
		}
	}
	if err := tagRows.Err(); err != nil {
		return fmt.Errorf("calibre: iterate tags: %w", err)
	}

	seriesRows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT l.book, sr.id, sr.name FROM books_series_link l
		 JOIN series sr ON sr.id = l.series WHERE l.book IN (%s)`, in), ids...)
	if err != nil {
		return fmt.Errorf("calibre: load series: %w", err)
	}
	defer seriesRows.Close()
	for seriesRows.Next() {
		var bookID int64
		var sr Series
		if err := seriesRows.Scan(&bookID, &sr.ID, &sr.Name); err != nil {
			return fmt.Errorf("calibre: scan series: %w", err)
		}
		if b, ok := index[bookID]; ok {
			sr.Index = b.SeriesIndex
			b.Series = &sr
		}
	}
	if err := seriesRows.Err(); err != nil {
		return fmt.Errorf("calibre: iterate series: %w", err)
	}

	pubRows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT l.book, p.id, p.name FROM books_publishers_link l
		 JOIN publishers p ON p.id = l.publisher WHERE l.book IN (%s)`, in), ids...)
	if err != nil {
		return fmt.Errorf("calibre: load publishers: %w", err)
	}
	defer pubRows.Close()
	for pubRows.Next() {
		var bookID int64
		var p Publisher
		if err := pubRows.Scan(&bookID, &p.ID, &p.Name); err != nil {
			return fmt.Errorf("calibre: scan publisher: %w", err)
		}
		if b, ok := index[bookID]; ok {
			b.Publisher = &p
		}
	}
	if err := pubRows.Err(); err != nil {
		return fmt.Errorf("calibre: iterate publishers: %w", err)
	}

	return nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	return page, perPage
}

// placeholders renders n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
