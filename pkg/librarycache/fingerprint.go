package librarycache

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Query describes one parameterized read operation for cache-key
// purposes. Pagination and sort are order-dependent fields; Terms holds
// scalar parameters (e.g. a search string) keyed by name; Filters holds
// set-valued parameters whose element order is semantically irrelevant.
type Query struct {
	// Op names the read operation ("list", "search", "detail", ...).
	Op string

	Page    int
	PerPage int
	Sort    string
	Order   string

	// Terms are scalar parameters, canonicalized by sorted key.
	Terms map[string]string

	// Filters are set-valued parameters. Values are sorted and
	// deduplicated before encoding, so differently-ordered but equal
	// sets share a fingerprint.
	Filters map[string][]string
}

// Fingerprint deterministically encodes a query into an opaque cache-key
// fragment. The canonical encoding is length-prefixed, so distinct
// parameter sets cannot collide by concatenation, and is digested with
// xxhash64 to keep keys short for the cache backend.
//
// Returns ErrInvalidParams for an empty operation name or empty
// parameter keys. Pure function, no side effects.
func Fingerprint(q Query) (string, error) {
	if q.Op == "" {
		return "", fmt.Errorf("%w: empty operation name", ErrInvalidParams)
	}

	d := xxhash.New()

	writeString(d, q.Op)
	writeString(d, strconv.Itoa(q.Page))
	writeString(d, strconv.Itoa(q.PerPage))
	writeString(d, q.Sort)
	writeString(d, q.Order)

	termKeys := make([]string, 0, len(q.Terms))
	for k := range q.Terms {
		if k == "" {
			return "", fmt.Errorf("%w: empty term key", ErrInvalidParams)
		}
		termKeys = append(termKeys, k)
	}
	slices.Sort(termKeys)

	writeString(d, strconv.Itoa(len(termKeys)))
	for _, k := range termKeys {
		writeString(d, k)
		writeString(d, q.Terms[k])
	}

	filterKeys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		if k == "" {
			return "", fmt.Errorf("%w: empty filter key", ErrInvalidParams)
		}
		filterKeys = append(filterKeys, k)
	}
	slices.Sort(filterKeys)

	writeString(d, strconv.Itoa(len(filterKeys)))
	for _, k := range filterKeys {
		vals := slices.Clone(q.Filters[k])
		slices.Sort(vals)
		vals = slices.Compact(vals)

		writeString(d, k)
		writeString(d, strconv.Itoa(len(vals)))
		for _, v := range vals {
			writeString(d, v)
		}
	}

	return fmt.Sprintf("%016x", d.Sum64()), nil
}

// writeString feeds a length-prefixed string into the digest.
// The prefix keeps the encoding injective: "ab"+"c" and "a"+"bc"
// hash differently.
func writeString(d *xxhash.Digest, s string) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(s)))
	_, _ = d.Write(buf[:n])
	_, _ = d.WriteString(s)
}
