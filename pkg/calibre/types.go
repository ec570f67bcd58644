package calibre

// Author is a contributor row from Calibre's authors table.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tag is a row from Calibre's tags table.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Series references the series a book belongs to.
type Series struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Index float64 `json:"index,omitempty"`
}

// Publisher is a row from Calibre's publishers table.
type Publisher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book is one library entry as shown in listings and search results.
// Timestamp fields carry Calibre's own text representation; the server
// never parses them, it only sorts on them in SQL.
type Book struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Path         string     `json:"path"`
	HasCover     bool       `json:"has_cover"`
	UUID         string     `json:"uuid,omitempty"`
	ISBN         string     `json:"isbn,omitempty"`
	PubDate      string     `json:"pubdate,omitempty"`
	Timestamp    string     `json:"timestamp,omitempty"`
	LastModified string     `json:"last_modified,omitempty"`
	SeriesIndex  float64    `json:"series_index,omitempty"`
	Authors      []Author   `json:"authors"`
	Tags         []Tag      `json:"tags"`
	Series       *Series    `json:"series,omitempty"`
	Publisher    *Publisher `json:"publisher,omitempty"`
}

// BookDetail extends Book with the fields shown on a detail page.
type BookDetail struct {
	Book
	Comments    string            `json:"comments,omitempty"`
	Rating      float64           `json:"rating,omitempty"`
	Formats     []string          `json:"formats"`
	Languages   []string          `json:"languages"`
	Identifiers map[string]string `json:"identifiers"`
}

// BookPage is one page of a listing or search result.
type BookPage struct {
	Books   []Book `json:"books"`
	Total   int64  `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

// Category is a grouping entry (author, tag, series, or publisher)
// with the number of books it contains.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Sort keys accepted by ListBooks, mirroring the web UI's options.
const (
	SortNew        = "new"        // added date, newest first (default)
	SortOld        = "old"        // added date, oldest first
	SortTitleAZ    = "abc"        // title ascending
	SortTitleZA    = "zyx"        // title descending
	SortPubNew     = "pubnew"     // publication date, newest first
	SortPubOld     = "pubold"     // publication date, oldest first
	SortSeriesAsc  = "seriesasc"  // series index ascending
	SortSeriesDesc = "seriesdesc" // series index descending
	SortAuthorAZ   = "authaz"     // first author ascending
	SortAuthorZA   = "authza"     // first author descending
)

// ListParams selects and orders one page of books.
type ListParams struct {
	Page    int
	PerPage int
	Sort    string

	// Optional filters; zero means unfiltered. TagID -1 selects books
	// without any tag.
	AuthorID    int64
	SeriesID    int64
	TagID       int64
	PublisherID int64
}
