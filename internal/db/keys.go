package db

import "strings"

const (
	directPrefix = "dm:"
	streamPrefix = "stream:"
)

// keySep separates the parts of a conversation key. User ids may not contain
// it, so every direct key names exactly one pair.
const keySep = ":"

// ValidUserID reports whether id can take part in a conversation key.
func ValidUserID(id string) bool {
	return id != "" && !strings.Contains(id, keySep)
}

// DirectKey is the conversation key of the unordered pair {a, b}. Both ids
// must pass ValidUserID; ParseDirectKey rejects keys built from other ids.
func DirectKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return directPrefix + a + keySep + b
}

// StreamKey is the conversation key of a stream's chat.
func StreamKey(streamID string) string {
	return streamPrefix + streamID
}

// ParseDirectKey returns the two participants of a direct conversation key.
func ParseDirectKey(key string) (lo, hi string, ok bool) {
	rest, found := strings.CutPrefix(key, directPrefix)
	if !found {
		return "", "", false
	}
	lo, hi, ok = strings.Cut(rest, keySep)
	if !ok || !ValidUserID(lo) || !ValidUserID(hi) {
		return "", "", false
	}
	return lo, hi, true
}

// ParseStreamKey returns the stream id of a stream conversation key.
func ParseStreamKey(key string) (string, bool) {
	id, found := strings.CutPrefix(key, streamPrefix)
	return id, found && id != ""
}
