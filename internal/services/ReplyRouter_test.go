package services

import (
	"anonbot/internal/models"
	"anonbot/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (ReplyRouterInterface, *FeedbackService, *testutil.MockCache) {
	t.Helper()
	fs, _ := newService(t)
	cache := testutil.NewMockCache()
	return NewReplyRouter(cache, fs), fs, cache
}

func TestReplyRouter_RememberResolve(t *testing.T) {
	rr, fs, cache := newRouter(t)
	fs.OnMessage(42, "alice", t0)

	rr.Remember(-100500, 7, ReplyRoute{UserID: 42, UserMessageID: 3})
	assert.Contains(t, cache.Data, string(routeKey(-100500, 7)))
	assert.Equal(t, int64(1), rr.Pending())

	route, err := rr.Resolve(-100500, 7)
	require.NoError(t, err)
	assert.Equal(t, ReplyRoute{UserID: 42, UserMessageID: 3}, route)
}

func TestReplyRouter_UnknownRoute(t *testing.T) {
	rr, _, _ := newRouter(t)
	_, err := rr.Resolve(1, 2)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReplyRouter_CorruptValue(t *testing.T) {
	rr, _, cache := newRouter(t)
	cache.Set(routeKey(1, 2), []byte{1, 2, 3})
	_, err := rr.Resolve(1, 2)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReplyRouter_BlockedUser(t *testing.T) {
	rr, fs, _ := newRouter(t)
	fs.OnMessage(42, "alice", t0)
	rr.Remember(1, 2, ReplyRoute{UserID: 42, UserMessageID: 9})
	require.NoError(t, fs.AdminBlock(42))

	_, err := rr.Resolve(1, 2)
	assert.ErrorIs(t, err, models.ErrUserBlocked)
}

func TestReplyRouter_Forget(t *testing.T) {
	rr, fs, _ := newRouter(t)
	fs.OnMessage(42, "alice", t0)
	rr.Remember(1, 2, ReplyRoute{UserID: 42})
	rr.Forget(1, 2)
	assert.Zero(t, rr.Pending())

	_, err := rr.Resolve(1, 2)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRouteKey_DistinctPerChat(t *testing.T) {
	assert.NotEqual(t, routeKey(1, 2), routeKey(2, 1))
	assert.NotEqual(t, routeKey(-1, 2), routeKey(1, 2))
	assert.Len(t, routeKey(-100500, 7), routeKeySize)
}

func TestReplyRouter_StoredValueLayout(t *testing.T) {
	rr, _, cache := newRouter(t)
	rr.Remember(3, 4, ReplyRoute{UserID: 0x0102, UserMessageID: 0x0304})

	val := cache.Data[string(routeKey(3, 4))]
	require.Len(t, val, replyRouteSize)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2}, val[0:8])
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 3, 4}, val[8:16])

	key := routeKey(3, 4)
	assert.Equal(t, byte(routeKeyPrefix), key[0])
	assert.Equal(t, byte(3), key[8])
	assert.Equal(t, byte(4), key[16])
}
