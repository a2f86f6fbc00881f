package dao

import (
	"context"

	"goim-relation/apps/relation-service/model"
)

// RelationDAO 关系数据访问接口
//
// Get* 在记录不存在时返回 (nil, nil)；Upsert* 原子地返回写入前的记录，
// 之前不存在时返回 nil。
type RelationDAO interface {
	// 好友申请
	GetFriendshipRequest(ctx context.Context, fromUserID, toUserID int64) (*model.FriendshipRequest, error)
	ListFriendshipRequests(ctx context.Context, filter model.RequestFilter) ([]*model.FriendshipRequest, error)
	CountFriendshipRequests(ctx context.Context, filter model.RequestFilter) (int64, error)
	UpsertFriendshipRequest(ctx context.Context, req *model.FriendshipRequest) (*model.FriendshipRequest, error)
	// SaveFriendshipRequest 只更新已存在的申请，申请已被删除时返回 false
	SaveFriendshipRequest(ctx context.Context, req *model.FriendshipRequest) (bool, error)
	DeleteFriendshipRequest(ctx context.Context, fromUserID, toUserID int64) (bool, error)
	// AcceptFriendshipRequest 创建双向好友边并删除申请及反向申请，作为一个整体执行
	AcceptFriendshipRequest(ctx context.Context, req *model.FriendshipRequest, edges [2]*model.Friend) error

	// 好友
	GetFriend(ctx context.Context, fromUserID, toUserID int64) (*model.Friend, error)
	ListFriends(ctx context.Context, fromUserID int64) ([]*model.Friend, error)
	ListFriendsBetween(ctx context.Context, userA, userB int64) ([]*model.Friend, error)
	CreateFriend(ctx context.Context, friend *model.Friend) error
	DeleteFriendsBetween(ctx context.Context, userA, userB int64) (int64, error)

	// 关注
	GetInspiration(ctx context.Context, userID, inspiredByID int64) (*model.Inspiration, error)
	ListInspirationsByUser(ctx context.Context, userID int64) ([]*model.Inspiration, error)
	ListInspirationsByInspiredBy(ctx context.Context, inspiredByID int64) ([]*model.Inspiration, error)
	UpsertInspiration(ctx context.Context, inspiration *model.Inspiration) (*model.Inspiration, error)
	DeleteInspiration(ctx context.Context, userID, inspiredByID int64) (bool, error)

	// 屏蔽
	GetBlocking(ctx context.Context, fromUserID, toUserID int64) (*model.Blocking, error)
	ListBlockings(ctx context.Context, fromUserID int64) ([]*model.Blocking, error)
	UpsertBlocking(ctx context.Context, blocking *model.Blocking) (*model.Blocking, error)
	DeleteBlocking(ctx context.Context, fromUserID, toUserID int64) (bool, error)
}
