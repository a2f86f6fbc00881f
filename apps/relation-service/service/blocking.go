package service

import (
	"context"
	"fmt"
	"slices"

	"goim-relation/apps/relation-service/cache"
	"goim-relation/apps/relation-service/event"
	"goim-relation/apps/relation-service/model"
	"goim-relation/pkg/logger"
)

// ============ 屏蔽 ============

// AddBlocking fromUserID 屏蔽 toUserID
//
// 会删除双方的好友关系，拒绝对方发来的申请并撤回自己发出的申请。
// 屏蔽已存在时联动仍会执行，随后返回 ErrAlreadyBlocked。
func (s *Service) AddBlocking(ctx context.Context, fromUserID, toUserID int64) (blocking *model.Blocking, err error) {
	ctx, span := s.startSpan(ctx, "AddBlocking", fromUserID, toUserID)
	defer func() { finish(span, "AddBlocking", err) }()

	blocking = &model.Blocking{
		ID:         s.ids.Generate(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Created:    s.timestamp(),
	}
	if err := blocking.Validate(); err != nil {
		return nil, err
	}

	previous, err := s.dao.UpsertBlocking(ctx, blocking)
	if err != nil {
		return nil, wrap("failed to create blocking", err)
	}

	if _, err := s.RemoveFriend(ctx, fromUserID, toUserID); err != nil {
		return nil, err
	}

	incoming, err := s.dao.ListFriendshipRequests(ctx, model.RequestFilter{
		FromUserID: model.UserID(toUserID),
		ToUserID:   model.UserID(fromUserID),
		Rejected:   model.Bool(false),
	})
	if err != nil {
		return nil, wrap("failed to list incoming requests", err)
	}
	for _, req := range incoming {
		if err := s.Reject(ctx, req); err != nil {
			return nil, err
		}
	}

	outgoing, err := s.dao.ListFriendshipRequests(ctx, model.RequestFilter{
		FromUserID: model.UserID(fromUserID),
		ToUserID:   model.UserID(toUserID),
	})
	if err != nil {
		return nil, wrap("failed to list outgoing requests", err)
	}
	for _, req := range outgoing {
		if _, err := s.Cancel(ctx, req); err != nil {
			return nil, err
		}
	}

	if previous != nil {
		return nil, fmt.Errorf("user %d already blocked %d: %w", fromUserID, toUserID, model.ErrAlreadyBlocked)
	}

	s.cache.Invalidate(ctx, cache.KindBlocked, fromUserID)
	s.events.Emit(ctx, event.ForPair(event.BlockingCreated, fromUserID, toUserID, blocking.Created))

	s.logger.Info(ctx, "Blocking created successfully",
		logger.F("fromUserID", fromUserID),
		logger.F("toUserID", toUserID),
		logger.F("rejected", len(incoming)),
		logger.F("canceled", len(outgoing)))
	return blocking, nil
}

// RemoveBlocking 解除屏蔽，关系不存在时返回 false
func (s *Service) RemoveBlocking(ctx context.Context, fromUserID, toUserID int64) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "RemoveBlocking", fromUserID, toUserID)
	defer func() { finish(span, "RemoveBlocking", err) }()

	deleted, err := s.dao.DeleteBlocking(ctx, fromUserID, toUserID)
	if err != nil {
		return false, wrap("failed to delete blocking", err)
	}
	if !deleted {
		return false, nil
	}

	s.cache.Invalidate(ctx, cache.KindBlocked, fromUserID)
	s.events.Emit(ctx, event.ForPair(event.BlockingRemoved, fromUserID, toUserID, s.timestamp()))

	s.logger.Info(ctx, "Blocking removed successfully",
		logger.F("fromUserID", fromUserID),
		logger.F("toUserID", toUserID))
	return true, nil
}

// IsBlocked fromUserID 是否屏蔽了 toUserID
func (s *Service) IsBlocked(ctx context.Context, fromUserID, toUserID int64) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "IsBlocked", fromUserID, toUserID)
	defer func() { finish(span, "IsBlocked", err) }()

	var blocked []int64
	if s.cache.Peek(ctx, cache.KindBlocked, fromUserID, &blocked) && slices.Contains(blocked, toUserID) {
		return true, nil
	}

	blocking, err := s.dao.GetBlocking(ctx, fromUserID, toUserID)
	if err != nil {
		return false, wrap("failed to get blocking", err)
	}
	return blocking != nil, nil
}

// BlockedByUser userID 屏蔽的人
func (s *Service) BlockedByUser(ctx context.Context, userID int64) (ids []int64, err error) {
	ctx, span := s.startSpan(ctx, "BlockedByUser", userID, 0)
	defer func() { finish(span, "BlockedByUser", err) }()

	ids, err = cache.Load(ctx, s.cache, cache.KindBlocked, userID, func(ctx context.Context) ([]int64, error) {
		rows, err := s.dao.ListBlockings(ctx, userID)
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
		return nil, wrap("failed to list blocked users", err)
	}
	return ids, nil
}
