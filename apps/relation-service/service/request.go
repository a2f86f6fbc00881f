package service

import (
	"context"
	"fmt"

	"goim-relation/apps/relation-service/cache"
	"goim-relation/apps/relation-service/event"
	"goim-relation/apps/relation-service/model"
	"goim-relation/pkg/logger"
)

// ============ 好友申请 ============

// AddFriend 发送好友申请
//
// 对方屏蔽了自己时返回 ErrBlocked；自己对对方的屏蔽会先被解除。
// 已被拒绝的申请会被重置为新申请；仍在等待处理的申请返回 ErrDuplicateRequest。
func (s *Service) AddFriend(ctx context.Context, fromUserID, toUserID int64, message string) (req *model.FriendshipRequest, err error) {
	ctx, span := s.startSpan(ctx, "AddFriend", fromUserID, toUserID)
	defer func() { finish(span, "AddFriend", err) }()

	if fromUserID == toUserID {
		return nil, fmt.Errorf("users cannot be friends with themselves: %w", model.ErrSelfRelation)
	}

	req = &model.FriendshipRequest{
		ID:         s.ids.Generate(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Message:    message,
		Created:    s.timestamp(),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	blocked, err := s.IsBlocked(ctx, toUserID, fromUserID)
	if err != nil {
		return nil, wrap("failed to check blocking", err)
	}
	if blocked {
		return nil, fmt.Errorf("user %d cannot invite user %d: %w", fromUserID, toUserID, model.ErrBlocked)
	}

	unblocked, err := s.RemoveBlocking(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, wrap("failed to remove existing blocking", err)
	}

	previous, err := s.dao.UpsertFriendshipRequest(ctx, req)
	if err != nil {
		return nil, wrap("failed to create friendship request", err)
	}

	switch {
	case previous == nil:
	case !previous.IsPending():
		// 存储层已原子地重置了被拒绝的申请
		req.ID = previous.ID
	case unblocked:
		req.ID = previous.ID
		saved, err := s.dao.SaveFriendshipRequest(ctx, req)
		if err != nil {
			return nil, wrap("failed to reset friendship request", err)
		}
		if !saved {
			return nil, fmt.Errorf("friendship request %d was removed: %w", req.ID, model.ErrNotFound)
		}
	default:
		return nil, model.ErrDuplicateRequest
	}

	s.cache.Invalidate(ctx, cache.KindRequests, toUserID)
	s.cache.Invalidate(ctx, cache.KindSentRequests, fromUserID)
	created := event.ForRequest(event.RequestCreated, req, req.Created)
	created.Reset = previous != nil
	s.events.Emit(ctx, created)

	s.logger.Info(ctx, "Friendship request created successfully",
		logger.F("fromUserID", fromUserID),
		logger.F("toUserID", toUserID),
		logger.F("requestID", req.ID),
		logger.F("reset", previous != nil))
	return req, nil
}

// Accept 接受好友申请，建立双向好友关系并删除申请和反向申请
func (s *Service) Accept(ctx context.Context, req *model.FriendshipRequest) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "Accept", req.ToUserID, req.FromUserID)
	defer func() { finish(span, "Accept", err) }()

	now := s.timestamp()
	edges := [2]*model.Friend{
		{ID: s.ids.Generate(), FromUserID: req.FromUserID, ToUserID: req.ToUserID, Created: now},
		{ID: s.ids.Generate(), FromUserID: req.ToUserID, ToUserID: req.FromUserID, Created: now},
	}
	for _, edge := range edges {
		if err := edge.Validate(); err != nil {
			return false, err
		}
	}

	if err := s.dao.AcceptFriendshipRequest(ctx, req, edges); err != nil {
		return false, wrap("failed to accept friendship request", err)
	}

	s.cache.Invalidate(ctx, cache.KindRequests, req.ToUserID, req.FromUserID)
	s.cache.Invalidate(ctx, cache.KindSentRequests, req.FromUserID, req.ToUserID)
	s.cache.Invalidate(ctx, cache.KindFriends, req.ToUserID, req.FromUserID)
	s.events.Emit(ctx, event.ForPair(event.RequestAccepted, req.FromUserID, req.ToUserID, now))

	s.logger.Info(ctx, "Friendship request accepted successfully",
		logger.F("fromUserID", req.FromUserID),
		logger.F("toUserID", req.ToUserID))
	return true, nil
}

// Reject 拒绝好友申请，申请记录保留
func (s *Service) Reject(ctx context.Context, req *model.FriendshipRequest) (err error) {
	ctx, span := s.startSpan(ctx, "Reject", req.ToUserID, req.FromUserID)
	defer func() { finish(span, "Reject", err) }()

	rejected := s.timestamp()
	req.Rejected = &rejected
	saved, err := s.dao.SaveFriendshipRequest(ctx, req)
	if err != nil {
		return wrap("failed to reject friendship request", err)
	}
	if !saved {
		return fmt.Errorf("friendship request %d was removed: %w", req.ID, model.ErrNotFound)
	}

	s.cache.Invalidate(ctx, cache.KindRequests, req.ToUserID)
	s.events.Emit(ctx, event.ForRequest(event.RequestRejected, req, rejected))

	s.logger.Info(ctx, "Friendship request rejected",
		logger.F("fromUserID", req.FromUserID),
		logger.F("toUserID", req.ToUserID))
	return nil
}

// Cancel 撤回好友申请
func (s *Service) Cancel(ctx context.Context, req *model.FriendshipRequest) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "Cancel", req.FromUserID, req.ToUserID)
	defer func() { finish(span, "Cancel", err) }()

	deleted, err := s.dao.DeleteFriendshipRequest(ctx, req.FromUserID, req.ToUserID)
	if err != nil {
		return false, wrap("failed to cancel friendship request", err)
	}
	if !deleted {
		return false, nil
	}

	s.cache.Invalidate(ctx, cache.KindRequests, req.ToUserID)
	s.cache.Invalidate(ctx, cache.KindSentRequests, req.FromUserID)
	s.events.Emit(ctx, event.ForRequest(event.RequestCanceled, req, s.timestamp()))

	s.logger.Info(ctx, "Friendship request canceled",
		logger.F("fromUserID", req.FromUserID),
		logger.F("toUserID", req.ToUserID))
	return true, nil
}

// MarkViewed 标记申请已读
func (s *Service) MarkViewed(ctx context.Context, req *model.FriendshipRequest) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkViewed", req.ToUserID, req.FromUserID)
	defer func() { finish(span, "MarkViewed", err) }()

	viewed := s.timestamp()
	req.Viewed = &viewed
	saved, err := s.dao.SaveFriendshipRequest(ctx, req)
	if err != nil {
		return false, wrap("failed to mark friendship request viewed", err)
	}
	if !saved {
		return false, nil
	}

	s.cache.Invalidate(ctx, cache.KindRequests, req.ToUserID)
	s.events.Emit(ctx, event.ForRequest(event.RequestViewed, req, viewed))
	return true, nil
}

// GetFriendshipRequest 查询申请，不存在时返回 ErrNotFound
func (s *Service) GetFriendshipRequest(ctx context.Context, fromUserID, toUserID int64) (req *model.FriendshipRequest, err error) {
	ctx, span := s.startSpan(ctx, "GetFriendshipRequest", fromUserID, toUserID)
	defer func() { finish(span, "GetFriendshipRequest", err) }()

	req, err = s.dao.GetFriendshipRequest(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, wrap("failed to get friendship request", err)
	}
	if req == nil {
		return nil, fmt.Errorf("friendship request %d -> %d: %w", fromUserID, toUserID, model.ErrNotFound)
	}
	return req, nil
}

// ============ 好友申请视图 ============

func (s *Service) listRequests(ctx context.Context, kind cache.Kind, userID int64, filter model.RequestFilter) (requests []*model.FriendshipRequest, err error) {
	op := "Query." + string(kind)
	ctx, span := s.startSpan(ctx, op, userID, 0)
	defer func() { finish(span, op, err) }()

	requests, err = cache.Load(ctx, s.cache, kind, userID, func(ctx context.Context) ([]*model.FriendshipRequest, error) {
		return s.dao.ListFriendshipRequests(ctx, filter)
	})
	if err != nil {
		return nil, wrap("failed to list "+string(kind), err)
	}
	return requests, nil
}

func (s *Service) countRequests(ctx context.Context, kind cache.Kind, userID int64, filter model.RequestFilter) (count int64, err error) {
	op := "Query." + string(kind)
	ctx, span := s.startSpan(ctx, op, userID, 0)
	defer func() { finish(span, op, err) }()

	count, err = cache.Load(ctx, s.cache, kind, userID, func(ctx context.Context) (int64, error) {
		return s.dao.CountFriendshipRequests(ctx, filter)
	})
	if err != nil {
		return 0, wrap("failed to count "+string(kind), err)
	}
	return count, nil
}

// RequestsFor 用户收到的全部申请
func (s *Service) RequestsFor(ctx context.Context, userID int64) ([]*model.FriendshipRequest, error) {
	return s.listRequests(ctx, cache.KindRequests, userID, model.RequestFilter{ToUserID: model.UserID(userID)})
}

// SentRequestsFrom 用户发出的申请
func (s *Service) SentRequestsFrom(ctx context.Context, userID int64) ([]*model.FriendshipRequest, error) {
	return s.listRequests(ctx, cache.KindSentRequests, userID, model.RequestFilter{FromUserID: model.UserID(userID)})
}

// UnreadRequestsFor 未读申请
func (s *Service) UnreadRequestsFor(ctx context.Context, userID int64) ([]*model.FriendshipRequest, error) {
	return s.listRequests(ctx, cache.KindUnreadRequests, userID,
		model.RequestFilter{ToUserID: model.UserID(userID), Viewed: model.Bool(false)})
}

// UnreadRequestCount 未读申请数
func (s *Service) UnreadRequestCount(ctx context.Context, userID int64) (int64, error) {
	return s.countRequests(ctx, cache.KindUnreadRequestCount, userID,
		model.RequestFilter{ToUserID: model.UserID(userID), Viewed: model.Bool(false)})
}

// ReadRequestsFor 已读申请
func (s *Service) ReadRequestsFor(ctx context.Context, userID int64) ([]*model.FriendshipRequest, error) {
	return s.listRequests(ctx, cache.KindReadRequests, userID,
		model.RequestFilter{ToUserID: model.UserID(userID), Viewed: model.Bool(true)})
}

// RejectedRequestsFor 已拒绝的申请
func (s *Service) RejectedRequestsFor(ctx context.Context, userID int64) ([]*model.FriendshipRequest, error) {
	return s.listRequests(ctx, cache.KindRejectedRequests, userID,
		model.RequestFilter{ToUserID: model.UserID(userID), Rejected: model.Bool(true)})
}

// UnrejectedRequestsFor 未被拒绝的申请
func (s *Service) UnrejectedRequestsFor(ctx context.Context, userID int64) ([]*model.FriendshipRequest, error) {
	return s.listRequests(ctx, cache.KindUnrejectedRequests, userID,
		model.RequestFilter{ToUserID: model.UserID(userID), Rejected: model.Bool(false)})
}

// UnrejectedRequestCount 未被拒绝的申请数
func (s *Service) UnrejectedRequestCount(ctx context.Context, userID int64) (int64, error) {
	return s.countRequests(ctx, cache.KindUnrejectedRequestCount, userID,
		model.RequestFilter{ToUserID: model.UserID(userID), Rejected: model.Bool(false)})
}
