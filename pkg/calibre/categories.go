package calibre

import (
	"context"
	"fmt"
)

// Authors returns all authors with their book counts, ordered by name.
func (s *Store) Authors(ctx context.Context) ([]Category, error) {
	return s.categories(ctx,
		`SELECT a.id, a.name, COUNT(l.book) FROM authors a
		 LEFT JOIN books_authors_link l ON l.author = a.id
		 GROUP BY a.id, a.name ORDER BY a.name`)
}

// Tags returns all tags with their book counts, ordered by name.
func (s *Store) Tags(ctx context.Context) ([]Category, error) {
	return s.categories(ctx,
		`SELECT t.id, t.name, COUNT(l.book) FROM tags t
		 LEFT JOIN books_tags_link l ON l.tag = t.id
		 GROUP BY t.id, t.name ORDER BY t.name`)
}

// Series returns all series with their book counts, ordered by name.
func (s *Store) SeriesList(ctx context.Context) ([]Category, error) {
	return s.categories(ctx,
		`SELECT sr.id, sr.name, COUNT(l.book) FROM series sr
		 LEFT JOIN books_series_link l ON l.series = sr.id
		 GROUP BY sr.id, sr.name ORDER BY sr.name`)
}

// Publishers returns all publishers with their book counts, ordered by name.
func (s *Store) Publishers(ctx context.Context) ([]Category, error) {
	return s.categories(ctx,
		`SELECT p.id, p.name, COUNT(l.book) FROM publishers p
		 LEFT JOIN books_publishers_link l ON l.publisher = p.id
		 GROUP BY p.id, p.name ORDER BY p.name`)
}

func (s *Store) categories(ctx context.Context, query string) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("calibre: query categories: %w", err)
	}
	defer rows.Close()

	cats := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("calibre: scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calibre: iterate categories: %w", err)
	}
	return cats, nil
}
