package services

import (
	"anonbot/internal/models"
	"anonbot/internal/providers"
	"encoding/binary"
	"fmt"
)

const (
	routeKeyPrefix = 'r'
	routeKeySize   = 17
	replyRouteSize = 16
)

// ReplyRoute points a forwarded copy back at the anonymous sender.
type ReplyRoute struct {
	UserID        int64 `json:"user_id"`
	UserMessageID int64 `json:"user_message_id"`
}

type ReplyRouterInterface interface {
	Remember(chatID, forwardedID int64, route ReplyRoute)
	Resolve(chatID, forwardedID int64) (ReplyRoute, error)
	Forget(chatID, forwardedID int64)
	Pending() int64
}

// ReplyRouter keeps forwarded-message links in the cache. Links expire with
// the cache TTL and are not part of the snapshot.
type ReplyRouter struct {
	cache   providers.CacheProviderInterface
	service FeedbackServiceInterface
}

func NewReplyRouter(cache providers.CacheProviderInterface, service FeedbackServiceInterface) ReplyRouterInterface {
	return &ReplyRouter{cache: cache, service: service}
}

func routeKey(chatID, forwardedID int64) []byte {
	key := make([]byte, routeKeySize)
	key[0] = routeKeyPrefix
	binary.BigEndian.PutUint64(key[1:9], uint64(chatID))
	binary.BigEndian.PutUint64(key[9:17], uint64(forwardedID))
	return key
}

func (rr *ReplyRouter) Remember(chatID, forwardedID int64, route ReplyRoute) {
	buf := make([]byte, replyRouteSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(route.UserID))
	binary.BigEndian.PutUint64(buf[8:16], uint64(route.UserMessageID))
	rr.cache.Set(routeKey(chatID, forwardedID), buf)
}

// Resolve finds the sender of a forwarded message. Replies to blocked
// users are refused.
func (rr *ReplyRouter) Resolve(chatID, forwardedID int64) (ReplyRoute, error) {
	buf, ok := rr.cache.Get(routeKey(chatID, forwardedID))
	if !ok || len(buf) != replyRouteSize {
		return ReplyRoute{}, fmt.Errorf("%w: no route for message %d in chat %d", models.ErrNotFound, forwardedID, chatID)
	}
	route := ReplyRoute{
		UserID:        int64(binary.BigEndian.Uint64(buf[0:8])),
		UserMessageID: int64(binary.BigEndian.Uint64(buf[8:16])),
	}
	if rr.service.IsBlocked(route.UserID) {
		return ReplyRoute{}, fmt.Errorf("user %d: %w", route.UserID, models.ErrUserBlocked)
	}
	return route, nil
}

func (rr *ReplyRouter) Forget(chatID, forwardedID int64) {
	rr.cache.Del(routeKey(chatID, forwardedID))
}

// Pending counts live routes, including any that expired but were not
// yet reclaimed.
func (rr *ReplyRouter) Pending() int64 {
	return rr.cache.Len()
}
