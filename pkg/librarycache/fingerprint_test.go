package librarycache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khanhdo2000/calibre-web-clone/pkg/librarycache"
)

func TestFingerprint(t *testing.T) {
	t.Parallel()

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()

		q := librarycache.Query{
			Op:      "list",
			Page:    2,
			PerPage: 20,
			Sort:    "new",
			Terms:   map[string]string{"author": "7"},
		}

		a, err := librarycache.Fingerprint(q)
		require.NoError(t, err)
		b, err := librarycache.Fingerprint(q)
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("fixed width hex", func(t *testing.T) {
		t.Parallel()

		fp, err := librarycache.Fingerprint(librarycache.Query{Op: "list"})
		require.NoError(t, err)
		require.Len(t, fp, 16)
		require.Regexp(t, "^[0-9a-f]{16}$", fp)
	})

	t.Run("term order does not matter", func(t *testing.T) {
		t.Parallel()

		a, err := librarycache.Fingerprint(librarycache.Query{
			Op:    "list",
			Terms: map[string]string{"author": "7", "series": "3"},
		})
		require.NoError(t, err)

		b, err := librarycache.Fingerprint(librarycache.Query{
			Op:    "list",
			Terms: map[string]string{"series": "3", "author": "7"},
		})
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("filter value order does not matter", func(t *testing.T) {
		t.Parallel()

		a, err := librarycache.Fingerprint(librarycache.Query{
			Op:      "list",
			Filters: map[string][]string{"tag": {"scifi", "horror"}},
		})
		require.NoError(t, err)

		b, err := librarycache.Fingerprint(librarycache.Query{
			Op:      "list",
			Filters: map[string][]string{"tag": {"horror", "scifi"}},
		})
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("duplicate filter values collapse", func(t *testing.T) {
		t.Parallel()

		a, err := librarycache.Fingerprint(librarycache.Query{
			Op:      "list",
			Filters: map[string][]string{"tag": {"scifi", "scifi"}},
		})
		require.NoError(t, err)

		b, err := librarycache.Fingerprint(librarycache.Query{
			Op:      "list",
			Filters: map[string][]string{"tag": {"scifi"}},
		})
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("page and sort are significant", func(t *testing.T) {
		t.Parallel()

		base := librarycache.Query{Op: "list", Page: 1, PerPage: 20, Sort: "new"}

		fp, err := librarycache.Fingerprint(base)
		require.NoError(t, err)

		paged := base
		paged.Page = 2
		fpPaged, err := librarycache.Fingerprint(paged)
		require.NoError(t, err)
		require.NotEqual(t, fp, fpPaged)

		sorted := base
		sorted.Sort = "old"
		fpSorted, err := librarycache.Fingerprint(sorted)
		require.NoError(t, err)
		require.NotEqual(t, fp, fpSorted)
	})

	t.Run("different ops differ", func(t *testing.T) {
		t.Parallel()

		a, err := librarycache.Fingerprint(librarycache.Query{Op: "list"})
		require.NoError(t, err)
		b, err := librarycache.Fingerprint(librarycache.Query{Op: "search"})
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("adjacent fields do not bleed into each other", func(t *testing.T) {
		t.Parallel()

		// "ab" + "c" must not hash the same as "a" + "bc".
		a, err := librarycache.Fingerprint(librarycache.Query{
			Op:    "list",
			Terms: map[string]string{"ab": "c"},
		})
		require.NoError(t, err)

		b, err := librarycache.Fingerprint(librarycache.Query{
			Op:    "list",
			Terms: map[string]string{"a": "bc"},
		})
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("rejects empty op", func(t *testing.T) {
		t.Parallel()

		_, err := librarycache.Fingerprint(librarycache.Query{})
		require.ErrorIs(t, err, librarycache.ErrInvalidParams)
	})

	t.Run("rejects empty term key", func(t *testing.T) {
		t.Parallel()

		_, err := librarycache.Fingerprint(librarycache.Query{
			Op:    "list",
			Terms: map[string]string{"": "x"},
		})
		require.ErrorIs(t, err, librarycache.ErrInvalidParams)
	})

	t.Run("rejects empty filter key", func(t *testing.T) {
		t.Parallel()

		_, err := librarycache.Fingerprint(librarycache.Query{
			Op:      "list",
			Filters: map[string][]string{"": {"x"}},
		})
		require.ErrorIs(t, err, librarycache.ErrInvalidParams)
	})
}
