// Package calibre reads a Calibre library's metadata.db.
//
// The database is owned and written exclusively by the Calibre desktop
// application; this package opens it read-only and only queries it.
// Freshness of derived results is not this package's problem — the
// cache layer in pkg/librarycache wraps these queries and pkg/libwatch
// invalidates them when the desktop app writes.
//
// All operations are idempotent reads: [Store.ListBooks],
// [Store.SearchBooks], [Store.BookDetail], [Store.RandomBooks], and the
// category listings ([Store.Authors], [Store.Tags], [Store.SeriesList],
// [Store.Publishers]). Listing supports the web UI's sort keys and
// author/series/tag/publisher filters; TagID -1 selects untagged books.
//
// Search matches title, author, tag, and series names
// case-insensitively.
// Unlike the desktop application it does not fold diacritics; SQLite's
// lower() covers ASCII only.
package calibre
