package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-connect/internal/testutil"
)

func TestLikeCount(t *testing.T) {
	ctx := context.Background()
	rc, mr := testutil.Redis(t)

	_, found, err := rc.GetLikeCount(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, rc.SetLikeCount(ctx, "u1", 7))
	n, found, err := rc.GetLikeCount(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, time.Hour, mr.TTL("likes:count:u1"))

	require.NoError(t, rc.InvalidateLikeCount(ctx, "u1"))
	_, found, err = rc.GetLikeCount(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEntitlement(t *testing.T) {
	ctx := context.Background()
	rc, mr := testutil.Redis(t)

	require.NoError(t, rc.SetEntitlement(ctx, "u1", true, time.Minute))
	premium, found, err := rc.GetEntitlement(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, premium)

	mr.FastForward(2 * time.Minute)
	_, found, err = rc.GetEntitlement(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCorruptValue(t *testing.T) {
	ctx := context.Background()
	rc, mr := testutil.Redis(t)

	require.NoError(t, mr.Set("stream:viewers:s1", "not-a-number"))
	_, _, err := rc.GetViewerCount(ctx, "s1")
	assert.Error(t, err)
}
