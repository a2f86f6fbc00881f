package service

import (
	"context"
	"slices"

	"goim-relation/apps/relation-service/cache"
	"goim-relation/apps/relation-service/event"
	"goim-relation/pkg/logger"
)

// ============ 好友关系 ============

// FriendsOf 用户的好友ID列表
func (s *Service) FriendsOf(ctx context.Context, userID int64) (friends []int64, err error) {
	ctx, span := s.startSpan(ctx, "FriendsOf", userID, 0)
	defer func() { finish(span, "FriendsOf", err) }()

	friends, err = cache.Load(ctx, s.cache, cache.KindFriends, userID, func(ctx context.Context) ([]int64, error) {
		rows, err := s.dao.ListFriends(ctx, userID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ToUserID)
		}
		return ids, nil
	})
	if err != nil {
		return nil, wrap("failed to list friends", err)
	}
	return friends, nil
}

// RemoveFriend 删除两个用户之间任意方向的好友边，没有好友关系时返回 false
func (s *Service) RemoveFriend(ctx context.Context, userA, userB int64) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "RemoveFriend", userA, userB)
	defer func() { finish(span, "RemoveFriend", err) }()

	rows, err := s.dao.ListFriendsBetween(ctx, userA, userB)
	if err != nil {
		return false, wrap("failed to find friends", err)
	}
	if len(rows) == 0 {
		return false, nil
	}

	if _, err := s.dao.DeleteFriendsBetween(ctx, userA, userB); err != nil {
		return false, wrap("failed to delete friends", err)
	}

	s.cache.Invalidate(ctx, cache.KindFriends, userA, userB)
	// 每条边按自身方向发事件
	removed := s.timestamp()
	for _, row := range rows {
		s.events.Emit(ctx, event.ForPair(event.FriendRemoved, row.FromUserID, row.ToUserID, removed))
	}

	s.logger.Info(ctx, "Friend removed successfully",
		logger.F("userID", userA),
		logger.F("friendID", userB),
		logger.F("edges", len(rows)))
	return true, nil
}

// AreFriends 先看两人已缓存的好友列表，都未命中时只查 b->a 这一条边
func (s *Service) AreFriends(ctx context.Context, userA, userB int64) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "AreFriends", userA, userB)
	defer func() { finish(span, "AreFriends", err) }()

	var friends []int64
	if s.cache.Peek(ctx, cache.KindFriends, userA, &friends) && slices.Contains(friends, userB) {
		return true, nil
	}
	friends = nil
	if s.cache.Peek(ctx, cache.KindFriends, userB, &friends) && slices.Contains(friends, userA) {
		return true, nil
	}

	edge, err := s.dao.GetFriend(ctx, userB, userA)
	if err != nil {
		return false, wrap("failed to get friend", err)
	}
	return edge != nil, nil
}
