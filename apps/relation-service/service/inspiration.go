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

// ============ 关注 ============

// AddInspiration userID 关注 inspiredByID，已关注时返回 ErrAlreadyInspired
func (s *Service) AddInspiration(ctx context.Context, userID, inspiredByID int64) (inspiration *model.Inspiration, err error) {
	ctx, span := s.startSpan(ctx, "AddInspiration", userID, inspiredByID)
	defer func() { finish(span, "AddInspiration", err) }()

	inspiration = &model.Inspiration{
		ID:           s.ids.Generate(),
		UserID:       userID,
		InspiredByID: inspiredByID,
		Created:      s.timestamp(),
	}
	if err := inspiration.Validate(); err != nil {
		return nil, err
	}

	previous, err := s.dao.UpsertInspiration(ctx, inspiration)
	if err != nil {
		return nil, wrap("failed to create inspiration", err)
	}
	if previous != nil {
		return nil, fmt.Errorf("user %d already inspired by %d: %w", userID, inspiredByID, model.ErrAlreadyInspired)
	}

	s.cache.Invalidate(ctx, cache.KindInspirations, inspiredByID)
	s.cache.Invalidate(ctx, cache.KindInspirationals, userID)

	created := event.New(event.InspirationCreated, inspiration.Created)
	created.UserID = userID
	s.events.Emit(ctx, created)
	inspirational := event.New(event.InspirationalCreated, inspiration.Created)
	inspirational.InspiredByID = inspiredByID
	s.events.Emit(ctx, inspirational)

	s.logger.Info(ctx, "Inspiration created successfully",
		logger.F("userID", userID),
		logger.F("inspiredByID", inspiredByID))
	return inspiration, nil
}

// RemoveInspiration 取消关注，关系不存在时返回 false
func (s *Service) RemoveInspiration(ctx context.Context, userID, inspiredByID int64) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "RemoveInspiration", userID, inspiredByID)
	defer func() { finish(span, "RemoveInspiration", err) }()

	deleted, err := s.dao.DeleteInspiration(ctx, userID, inspiredByID)
	if err != nil {
		return false, wrap("failed to delete inspiration", err)
	}
	if !deleted {
		return false, nil
	}

	s.cache.Invalidate(ctx, cache.KindInspirations, inspiredByID)
	s.cache.Invalidate(ctx, cache.KindInspirationals, userID)

	at := s.timestamp()
	removed := event.New(event.InspirationRemoved, at)
	removed.UserID = userID
	s.events.Emit(ctx, removed)
	inspirational := event.New(event.InspirationalRemoved, at)
	inspirational.InspiredByID = inspiredByID
	s.events.Emit(ctx, inspirational)

	s.logger.Info(ctx, "Inspiration removed successfully",
		logger.F("userID", userID),
		logger.F("inspiredByID", inspiredByID))
	return true, nil
}

// IsInspired userID 是否关注了 inspiredByID
func (s *Service) IsInspired(ctx context.Context, userID, inspiredByID int64) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "IsInspired", userID, inspiredByID)
	defer func() { finish(span, "IsInspired", err) }()

	var ids []int64
	if s.cache.Peek(ctx, cache.KindInspirationals, userID, &ids) && slices.Contains(ids, inspiredByID) {
		return true, nil
	}
	ids = nil
	if s.cache.Peek(ctx, cache.KindInspirations, inspiredByID, &ids) && slices.Contains(ids, userID) {
		return true, nil
	}

	inspiration, err := s.dao.GetInspiration(ctx, userID, inspiredByID)
	if err != nil {
		return false, wrap("failed to get inspiration", err)
	}
	return inspiration != nil, nil
}

// InspiredByUser 关注 userID 的人（followers）
func (s *Service) InspiredByUser(ctx context.Context, userID int64) (ids []int64, err error) {
	ctx, span := s.startSpan(ctx, "InspiredByUser", userID, 0)
	defer func() { finish(span, "InspiredByUser", err) }()

	ids, err = cache.Load(ctx, s.cache, cache.KindInspirations, userID, func(ctx context.Context) ([]int64, error) {
		rows, err := s.dao.ListInspirationsByInspiredBy(ctx, userID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.UserID)
		}
		return ids, nil
	})
	if err != nil {
		return nil, wrap("failed to list followers", err)
	}
	return ids, nil
}

// UserInspiredBy userID 关注的人（following）
func (s *Service) UserInspiredBy(ctx context.Context, userID int64) (ids []int64, err error) {
	ctx, span := s.startSpan(ctx, "UserInspiredBy", userID, 0)
	defer func() { finish(span, "UserInspiredBy", err) }()

	ids, err = cache.Load(ctx, s.cache, cache.KindInspirationals, userID, func(ctx context.Context) ([]int64, error) {
		rows, err := s.dao.ListInspirationsByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.InspiredByID)
		}
		return ids, nil
	})
	if err != nil {
		return nil, wrap("failed to list following", err)
	}
	return ids, nil
}
