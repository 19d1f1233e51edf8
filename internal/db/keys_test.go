package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectKeyRoundTrip(t *testing.T) {
	key := DirectKey("bob", "alice")
	assert.Equal(t, key, DirectKey("alice", "bob"))

	lo, hi, ok := ParseDirectKey(key)
	assert.True(t, ok)
	assert.Equal(t, "alice", lo)
	assert.Equal(t, "bob", hi)
}

func TestDirectKeyRejectsSeparatorInIDs(t *testing.T) {
	assert.False(t, ValidUserID("a:b"))
	assert.False(t, ValidUserID(""))
	assert.True(t, ValidUserID("a.b"))

	// {"a","b:c"} and {"a:b","c"} would share this key
	_, _, ok := ParseDirectKey(DirectKey("a", "b:c"))
	assert.False(t, ok)
	_, _, ok = ParseDirectKey(DirectKey("a:b", "c"))
	assert.False(t, ok)

	_, _, ok = ParseDirectKey("dm:a:")
	assert.False(t, ok)
	_, _, ok = ParseDirectKey("stream:x")
	assert.False(t, ok)
}

func TestStreamKey(t *testing.T) {
	id, ok := ParseStreamKey(StreamKey("s1"))
	assert.True(t, ok)
	assert.Equal(t, "s1", id)

	_, ok = ParseStreamKey("stream:")
	assert.False(t, ok)
}
