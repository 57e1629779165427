package ratelimit

import "strings"

// keyPrefix namespaces rate-limit buckets in the coordination store.
const keyPrefix = "ratelimit:"

// BucketKey builds the store key for a quota bucket. The endpoint class
// and subject are combined so distinct endpoints are quota-isolated for
// the same principal. Separator characters in the subject are replaced
// to keep the key unambiguous.
func BucketKey(class, subject string) string {
	return keyPrefix + sanitize(class) + ":" + sanitize(subject)
}

// sanitize replaces key separator characters in untrusted input.
func sanitize(s string) string {
	return strings.NewReplacer(":", "_", " ", "_").Replace(s)
}
