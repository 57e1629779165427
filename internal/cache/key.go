package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const keyPrefix = "cache:"

// Key builds a canonical cache key for a request. Query parameters are
// sorted so that equivalent URLs with reordered parameters share an
// entry. The canonical form is hashed to keep keys bounded regardless
// of URL length.
func Key(method, path string, query url.Values) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(path)

	if len(query) > 0 {
		names := make([]string, 0, len(query))
		for name := range query {
			names = append(names, name)
		}
		sort.Strings(names)

		pairs := make([]string, 0, len(query))
		for _, name := range names {
			values := append([]string(nil), query[name]...)
			sort.Strings(values)
			for _, v := range values {
				pairs = append(pairs, name+"="+v)
			}
		}
		b.WriteByte('?')
		b.WriteString(strings.Join(pairs, "&"))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return keyPrefix + hex.EncodeToString(sum[:])
}
