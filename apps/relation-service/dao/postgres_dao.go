package dao

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"goim-relation/apps/relation-service/model"
	"goim-relation/pkg/database"
)

// postgresDAO 基于GORM的实现
type postgresDAO struct {
	db *database.PostgreSQL
}

// NewPostgresDAO 创建PostgreSQL DAO实例
func NewPostgresDAO(db *database.PostgreSQL) RelationDAO {
	return &postgresDAO{db: db}
}

// Migrate 建表及唯一索引
func Migrate(db *database.PostgreSQL) error {
	return db.AutoMigrate(
		&model.FriendshipRequest{},
		&model.Friend{},
		&model.Inspiration{},
		&model.Blocking{},
	)
}

func pairQuery(tx *gorm.DB, fromUserID, toUserID int64) *gorm.DB {
	return tx.Where("from_user_id = ? AND to_user_id = ?", fromUserID, toUserID)
}

func eitherDirection(tx *gorm.DB, userA, userB int64) *gorm.DB {
	return tx.Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
		userA, userB, userB, userA)
}

func applyRequestFilter(tx *gorm.DB, filter model.RequestFilter) *gorm.DB {
	if filter.FromUserID != nil {
		tx = tx.Where("from_user_id = ?", *filter.FromUserID)
	}
	if filter.ToUserID != nil {
		tx = tx.Where("to_user_id = ?", *filter.ToUserID)
	}
	if filter.Viewed != nil {
		if *filter.Viewed {
			tx = tx.Where("viewed IS NOT NULL")
		} else {
			tx = tx.Where("viewed IS NULL")
		}
	}
	if filter.Rejected != nil {
		if *filter.Rejected {
			tx = tx.Where("rejected IS NOT NULL")
		} else {
			tx = tx.Where("rejected IS NULL")
		}
	}
	return tx
}

// first 查询单条记录，不存在时返回 false
func first(tx *gorm.DB, dest interface{}) (bool, error) {
	err := tx.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", model.ErrUniquenessViolation, err)
	}
	return err
}

// ============ 好友申请 ============

// GetFriendshipRequest 获取好友申请
func (d *postgresDAO) GetFriendshipRequest(ctx context.Context, fromUserID, toUserID int64) (*model.FriendshipRequest, error) {
	var req model.FriendshipRequest
	found, err := first(pairQuery(d.db.WithContext(ctx), fromUserID, toUserID), &req)
	if err != nil {
		return nil, fmt.Errorf("failed to get friendship request: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &req, nil
}

// ListFriendshipRequests 按条件查询好友申请
func (d *postgresDAO) ListFriendshipRequests(ctx context.Context, filter model.RequestFilter) ([]*model.FriendshipRequest, error) {
	var requests []*model.FriendshipRequest
	if err := applyRequestFilter(d.db.WithContext(ctx), filter).
		Order("created ASC, id ASC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list friendship requests: %w", err)
	}
	return requests, nil
}

// CountFriendshipRequests 按条件统计好友申请
func (d *postgresDAO) CountFriendshipRequests(ctx context.Context, filter model.RequestFilter) (int64, error) {
	var count int64
	if err := applyRequestFilter(d.db.WithContext(ctx).Model(&model.FriendshipRequest{}), filter).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count friendship requests: %w", err)
	}
	return count, nil
}

// UpsertFriendshipRequest 插入申请；已存在且被拒绝时重置，返回写入前的记录
func (d *postgresDAO) UpsertFriendshipRequest(ctx context.Context, req *model.FriendshipRequest) (*model.FriendshipRequest, error) {
	var previous *model.FriendshipRequest
	err := d.db.Transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(req)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var existing model.FriendshipRequest
		if err := pairQuery(tx.Clauses(clause.Locking{Strength: "UPDATE"}), req.FromUserID, req.ToUserID).
			First(&existing).Error; err != nil {
			return err
		}
		previous = &existing
		if existing.Rejected == nil {
			return nil
		}
		return tx.Model(&model.FriendshipRequest{}).Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"message":  req.Message,
				"created":  req.Created,
				"rejected": nil,
				"viewed":   nil,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert friendship request: %w", translate(err))
	}
	return previous, nil
}

// SaveFriendshipRequest 按ID更新申请的全部字段，不会重新插入已删除的申请
func (d *postgresDAO) SaveFriendshipRequest(ctx context.Context, req *model.FriendshipRequest) (bool, error) {
	res := d.db.WithContext(ctx).Model(&model.FriendshipRequest{}).
		Where("id = ?", req.ID).
		Select("from_user_id", "to_user_id", "message", "created", "viewed", "rejected").
		Updates(req)
	if res.Error != nil {
		return false, fmt.Errorf("failed to save friendship request: %w", translate(res.Error))
	}
	return res.RowsAffected > 0, nil
}

// DeleteFriendshipRequest 删除好友申请
func (d *postgresDAO) DeleteFriendshipRequest(ctx context.Context, fromUserID, toUserID int64) (bool, error) {
	res := pairQuery(d.db.WithContext(ctx), fromUserID, toUserID).Delete(&model.FriendshipRequest{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete friendship request: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// AcceptFriendshipRequest 在一个事务中创建双向好友并删除双向申请
func (d *postgresDAO) AcceptFriendshipRequest(ctx context.Context, req *model.FriendshipRequest, edges [2]*model.Friend) error {
	err := d.db.Transaction(ctx, func(tx *gorm.DB) error {
		for _, edge := range edges {
			if err := tx.Create(edge).Error; err != nil {
				return err
			}
		}
		return eitherDirection(tx, req.FromUserID, req.ToUserID).Delete(&model.FriendshipRequest{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to accept friendship request: %w", translate(err))
	}
	return nil
}

// ============ 好友关系 ============

// GetFriend 获取单向好友边
func (d *postgresDAO) GetFriend(ctx context.Context, fromUserID, toUserID int64) (*model.Friend, error) {
	var friend model.Friend
	found, err := first(pairQuery(d.db.WithContext(ctx), fromUserID, toUserID), &friend)
	if err != nil {
		return nil, fmt.Errorf("failed to get friend: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &friend, nil
}

// ListFriends 获取好友列表
func (d *postgresDAO) ListFriends(ctx context.Context, fromUserID int64) ([]*model.Friend, error) {
	var friends []*model.Friend
	if err := d.db.WithContext(ctx).Where("from_user_id = ?", fromUserID).
		Order("id ASC").Find(&friends).Error; err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	return friends, nil
}

// ListFriendsBetween 两个用户之间任意方向的好友边
func (d *postgresDAO) ListFriendsBetween(ctx context.Context, userA, userB int64) ([]*model.Friend, error) {
	var friends []*model.Friend
	if err := eitherDirection(d.db.WithContext(ctx), userA, userB).Find(&friends).Error; err != nil {
		return nil, fmt.Errorf("failed to list friends between users: %w", err)
	}
	return friends, nil
}

// CreateFriend 创建好友边
func (d *postgresDAO) CreateFriend(ctx context.Context, friend *model.Friend) error {
	if err := d.db.WithContext(ctx).Create(friend).Error; err != nil {
		return fmt.Errorf("failed to create friend: %w", translate(err))
	}
	return nil
}

// DeleteFriendsBetween 删除双向好友边，返回删除条数
func (d *postgresDAO) DeleteFriendsBetween(ctx context.Context, userA, userB int64) (int64, error) {
	res := eitherDirection(d.db.WithContext(ctx), userA, userB).Delete(&model.Friend{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete friends: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ============ 关注 ============

// GetInspiration 获取关注关系
func (d *postgresDAO) GetInspiration(ctx context.Context, userID, inspiredByID int64) (*model.Inspiration, error) {
	var inspiration model.Inspiration
	found, err := first(d.db.WithContext(ctx).
		Where("user_id = ? AND inspired_by_id = ?", userID, inspiredByID), &inspiration)
	if err != nil {
		return nil, fmt.Errorf("failed to get inspiration: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &inspiration, nil
}

// ListInspirationsByUser 用户正在关注的人
func (d *postgresDAO) ListInspirationsByUser(ctx context.Context, userID int64) ([]*model.Inspiration, error) {
	var inspirations []*model.Inspiration
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("id ASC").Find(&inspirations).Error; err != nil {
		return nil, fmt.Errorf("failed to list inspirations: %w", err)
	}
	return inspirations, nil
}

// ListInspirationsByInspiredBy 用户的关注者
func (d *postgresDAO) ListInspirationsByInspiredBy(ctx context.Context, inspiredByID int64) ([]*model.Inspiration, error) {
	var inspirations []*model.Inspiration
	if err := d.db.WithContext(ctx).Where("inspired_by_id = ?", inspiredByID).
		Order("id ASC").Find(&inspirations).Error; err != nil {
		return nil, fmt.Errorf("failed to list inspirations: %w", err)
	}
	return inspirations, nil
}

// UpsertInspiration 不存在时插入，返回已存在的记录
func (d *postgresDAO) UpsertInspiration(ctx context.Context, inspiration *model.Inspiration) (*model.Inspiration, error) {
	var previous *model.Inspiration
	err := d.db.Transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(inspiration)
		if res.Error != nil || res.RowsAffected == 1 {
			return res.Error
		}
		var existing model.Inspiration
		if err := tx.Where("user_id = ? AND inspired_by_id = ?", inspiration.UserID, inspiration.InspiredByID).
			First(&existing).Error; err != nil {
			return err
		}
		previous = &existing
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert inspiration: %w", translate(err))
	}
	return previous, nil
}

// DeleteInspiration 删除关注关系
func (d *postgresDAO) DeleteInspiration(ctx context.Context, userID, inspiredByID int64) (bool, error) {
	res := d.db.WithContext(ctx).Where("user_id = ? AND inspired_by_id = ?", userID, inspiredByID).
		Delete(&model.Inspiration{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete inspiration: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ============ 屏蔽 ============

// GetBlocking 获取屏蔽关系
func (d *postgresDAO) GetBlocking(ctx context.Context, fromUserID, toUserID int64) (*model.Blocking, error) {
	var blocking model.Blocking
	found, err := first(pairQuery(d.db.WithContext(ctx), fromUserID, toUserID), &blocking)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocking: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &blocking, nil
}

// ListBlockings 用户屏蔽的人
func (d *postgresDAO) ListBlockings(ctx context.Context, fromUserID int64) ([]*model.Blocking, error) {
	var blockings []*model.Blocking
	if err := d.db.WithContext(ctx).Where("from_user_id = ?", fromUserID).
		Order("id ASC").Find(&blockings).Error; err != nil {
		return nil, fmt.Errorf("failed to list blockings: %w", err)
	}
	return blockings, nil
}

// UpsertBlocking 不存在时插入，返回已存在的记录
func (d *postgresDAO) UpsertBlocking(ctx context.Context, blocking *model.Blocking) (*model.Blocking, error) {
	var previous *model.Blocking
	err := d.db.Transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(blocking)
		if res.Error != nil || res.RowsAffected == 1 {
			return res.Error
		}
		var existing model.Blocking
		if err := pairQuery(tx, blocking.FromUserID, blocking.ToUserID).First(&existing).Error; err != nil {
			return err
		}
		previous = &existing
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert blocking: %w", translate(err))
	}
	return previous, nil
}

// DeleteBlocking 删除屏蔽关系
func (d *postgresDAO) DeleteBlocking(ctx context.Context, fromUserID, toUserID int64) (bool, error) {
	res := pairQuery(d.db.WithContext(ctx), fromUserID, toUserID).Delete(&model.Blocking{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete blocking: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
