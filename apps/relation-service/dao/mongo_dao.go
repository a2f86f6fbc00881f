package dao

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"goim-relation/apps/relation-service/model"
	"goim-relation/pkg/database"
)

const (
	collRequests     = "friendship_requests"
	collFriends      = "friends"
	collInspirations = "inspirations"
	collBlockings    = "blockings"
)

type mongoDAO struct {
	db *database.MongoDB
}

// NewMongoDAO 创建MongoDB DAO实例并确保唯一索引存在
func NewMongoDAO(ctx context.Context, db *database.MongoDB) (RelationDAO, error) {
	d := &mongoDAO{db: db}
	if err := d.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *mongoDAO) coll(name string) *mongo.Collection {
	return d.db.GetCollection(name)
}

func (d *mongoDAO) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collRequests: {
			{Keys: bson.D{{Key: "from_user_id", Value: 1}, {Key: "to_user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "to_user_id", Value: 1}, {Key: "created", Value: 1}}},
		},
		collFriends: {
			{Keys: bson.D{{Key: "from_user_id", Value: 1}, {Key: "to_user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "to_user_id", Value: 1}}},
		},
		collInspirations: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "inspired_by_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "inspired_by_id", Value: 1}}},
		},
		collBlockings: {
			{Keys: bson.D{{Key: "from_user_id", Value: 1}, {Key: "to_user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for name, models := range indexes {
		if _, err := d.coll(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func pairFilter(fromUserID, toUserID int64) bson.M {
	return bson.M{"from_user_id": fromUserID, "to_user_id": toUserID}
}

func eitherDirectionFilter(userA, userB int64) bson.M {
	return bson.M{"$or": []bson.M{pairFilter(userA, userB), pairFilter(userB, userA)}}
}

func requestFilter(filter model.RequestFilter) bson.M {
	m := bson.M{}
	if filter.FromUserID != nil {
		m["from_user_id"] = *filter.FromUserID
	}
	if filter.ToUserID != nil {
		m["to_user_id"] = *filter.ToUserID
	}
	nullness := func(field string, set *bool) {
		if set == nil {
			return
		}
		if *set {
			m[field] = bson.M{"$ne": nil}
		} else {
			m[field] = nil
		}
	}
	nullness("viewed", filter.Viewed)
	nullness("rejected", filter.Rejected)
	return m
}

func mongoTranslate(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", model.ErrUniquenessViolation, err)
	}
	return err
}

// findOne 不存在时返回 false
func findOne(ctx context.Context, coll *mongo.Collection, filter interface{}, dest interface{}) (bool, error) {
	err := coll.FindOne(ctx, filter).Decode(dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, sort bson.D) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []*T
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	return result, cursor.Err()
}

// insertIfAbsent $setOnInsert 方式的原子upsert，返回写入前的文档
func insertIfAbsent[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, doc interface{}) (*T, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)
	var previous T
	var err error
	// 并发upsert可能触发唯一索引冲突，重试一次即可读到对方写入的文档
	for attempt := 0; attempt < 2; attempt++ {
		err = coll.FindOneAndUpdate(ctx, filter, bson.M{"$setOnInsert": doc}, opts).Decode(&previous)
		if !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &previous, nil
}

// ==================== 好友申请 ====================

// GetFriendshipRequest 获取好友申请
func (d *mongoDAO) GetFriendshipRequest(ctx context.Context, fromUserID, toUserID int64) (*model.FriendshipRequest, error) {
	var req model.FriendshipRequest
	found, err := findOne(ctx, d.coll(collRequests), pairFilter(fromUserID, toUserID), &req)
	if err != nil {
		return nil, fmt.Errorf("failed to get friendship request: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &req, nil
}

// ListFriendshipRequests 按条件查询好友申请
func (d *mongoDAO) ListFriendshipRequests(ctx context.Context, filter model.RequestFilter) ([]*model.FriendshipRequest, error) {
	requests, err := findAll[model.FriendshipRequest](ctx, d.coll(collRequests), requestFilter(filter),
		bson.D{{Key: "created", Value: 1}, {Key: "_id", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("failed to list friendship requests: %w", err)
	}
	return requests, nil
}

// CountFriendshipRequests 按条件统计好友申请
func (d *mongoDAO) CountFriendshipRequests(ctx context.Context, filter model.RequestFilter) (int64, error) {
	count, err := d.coll(collRequests).CountDocuments(ctx, requestFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count friendship requests: %w", err)
	}
	return count, nil
}

// UpsertFriendshipRequest 插入申请；已存在且被拒绝时重置，返回写入前的记录
func (d *mongoDAO) UpsertFriendshipRequest(ctx context.Context, req *model.FriendshipRequest) (*model.FriendshipRequest, error) {
	coll := d.coll(collRequests)
	previous, err := insertIfAbsent[model.FriendshipRequest](ctx, coll, pairFilter(req.FromUserID, req.ToUserID), req)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert friendship request: %w", mongoTranslate(err))
	}
	if previous == nil || previous.Rejected == nil {
		return previous, nil
	}

	// 只重置仍处于拒绝状态的申请；并发时另一方已重置则返回当前的待处理记录
	filter := pairFilter(req.FromUserID, req.ToUserID)
	filter["rejected"] = bson.M{"$ne": nil}
	update := bson.M{"$set": bson.M{
		"message":  req.Message,
		"created":  req.Created,
		"rejected": nil,
		"viewed":   nil,
	}}
	var rejected model.FriendshipRequest
	err = coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(&rejected)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return d.GetFriendshipRequest(ctx, req.FromUserID, req.ToUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reset friendship request: %w", err)
	}
	return &rejected, nil
}

// SaveFriendshipRequest 按ID替换申请，不会重新插入已删除的申请
func (d *mongoDAO) SaveFriendshipRequest(ctx context.Context, req *model.FriendshipRequest) (bool, error) {
	res, err := d.coll(collRequests).ReplaceOne(ctx, bson.M{"_id": req.ID}, req)
	if err != nil {
		return false, fmt.Errorf("failed to save friendship request: %w", mongoTranslate(err))
	}
	return res.MatchedCount > 0, nil
}

// DeleteFriendshipRequest 删除好友申请
func (d *mongoDAO) DeleteFriendshipRequest(ctx context.Context, fromUserID, toUserID int64) (bool, error) {
	res, err := d.coll(collRequests).DeleteOne(ctx, pairFilter(fromUserID, toUserID))
	if err != nil {
		return false, fmt.Errorf("failed to delete friendship request: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// AcceptFriendshipRequest 支持事务时在会话事务中执行，否则写入失败时补偿删除已创建的边
func (d *mongoDAO) AcceptFriendshipRequest(ctx context.Context, req *model.FriendshipRequest, edges [2]*model.Friend) error {
	if !d.db.SupportsTransactions() {
		if err := d.accept(ctx, req, edges, true); err != nil {
			return fmt.Errorf("failed to accept friendship request: %w", mongoTranslate(err))
		}
		return nil
	}

	session, err := d.db.GetClient().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, d.accept(sc, req, edges, false)
	})
	if err != nil {
		return fmt.Errorf("failed to accept friendship request: %w", mongoTranslate(err))
	}
	return nil
}

func (d *mongoDAO) accept(ctx context.Context, req *model.FriendshipRequest, edges [2]*model.Friend, compensate bool) error {
	friends := d.coll(collFriends)
	for i, edge := range edges {
		if _, err := friends.InsertOne(ctx, edge); err != nil {
			if compensate && i > 0 {
				_, _ = friends.DeleteOne(ctx, bson.M{"_id": edges[0].ID})
			}
			return err
		}
	}
	if _, err := d.coll(collRequests).DeleteMany(ctx, eitherDirectionFilter(req.FromUserID, req.ToUserID)); err != nil {
		if compensate {
			_, _ = friends.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": []int64{edges[0].ID, edges[1].ID}}})
		}
		return err
	}
	return nil
}

// ==================== 好友关系 ====================

// GetFriend 获取单向好友边
func (d *mongoDAO) GetFriend(ctx context.Context, fromUserID, toUserID int64) (*model.Friend, error) {
	var friend model.Friend
	found, err := findOne(ctx, d.coll(collFriends), pairFilter(fromUserID, toUserID), &friend)
	if err != nil {
		return nil, fmt.Errorf("failed to get friend: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &friend, nil
}

// ListFriends 获取好友列表
func (d *mongoDAO) ListFriends(ctx context.Context, fromUserID int64) ([]*model.Friend, error) {
	friends, err := findAll[model.Friend](ctx, d.coll(collFriends), bson.M{"from_user_id": fromUserID},
		bson.D{{Key: "_id", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	return friends, nil
}

// ListFriendsBetween 两个用户之间任意方向的好友边
func (d *mongoDAO) ListFriendsBetween(ctx context.Context, userA, userB int64) ([]*model.Friend, error) {
	friends, err := findAll[model.Friend](ctx, d.coll(collFriends), eitherDirectionFilter(userA, userB),
		bson.D{{Key: "_id", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("failed to list friends between users: %w", err)
	}
	return friends, nil
}

// CreateFriend 创建好友边
func (d *mongoDAO) CreateFriend(ctx context.Context, friend *model.Friend) error {
	if _, err := d.coll(collFriends).InsertOne(ctx, friend); err != nil {
		return fmt.Errorf("failed to create friend: %w", mongoTranslate(err))
	}
	return nil
}

// DeleteFriendsBetween 删除双向好友边，返回删除条数
func (d *mongoDAO) DeleteFriendsBetween(ctx context.Context, userA, userB int64) (int64, error) {
	res, err := d.coll(collFriends).DeleteMany(ctx, eitherDirectionFilter(userA, userB))
	if err != nil {
		return 0, fmt.Errorf("failed to delete friends: %w", err)
	}
	return res.DeletedCount, nil
}

// ==================== 关注 ====================

func inspirationFilter(userID, inspiredByID int64) bson.M {
	return bson.M{"user_id": userID, "inspired_by_id": inspiredByID}
}

// GetInspiration 获取关注关系
func (d *mongoDAO) GetInspiration(ctx context.Context, userID, inspiredByID int64) (*model.Inspiration, error) {
	var inspiration model.Inspiration
	found, err := findOne(ctx, d.coll(collInspirations), inspirationFilter(userID, inspiredByID), &inspiration)
	if err != nil {
		return nil, fmt.Errorf("failed to get inspiration: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &inspiration, nil
}

// ListInspirationsByUser 用户正在关注的人
func (d *mongoDAO) ListInspirationsByUser(ctx context.Context, userID int64) ([]*model.Inspiration, error) {
	inspirations, err := findAll[model.Inspiration](ctx, d.coll(collInspirations), bson.M{"user_id": userID},
		bson.D{{Key: "_id", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("failed to list inspirations: %w", err)
	}
	return inspirations, nil
}

// ListInspirationsByInspiredBy 用户的关注者
func (d *mongoDAO) ListInspirationsByInspiredBy(ctx context.Context, inspiredByID int64) ([]*model.Inspiration, error) {
	inspirations, err := findAll[model.Inspiration](ctx, d.coll(collInspirations), bson.M{"inspired_by_id": inspiredByID},
		bson.D{{Key: "_id", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("failed to list inspirations: %w", err)
	}
	return inspirations, nil
}

// UpsertInspiration 不存在时插入，返回已存在的记录
func (d *mongoDAO) UpsertInspiration(ctx context.Context, inspiration *model.Inspiration) (*model.Inspiration, error) {
	previous, err := insertIfAbsent[model.Inspiration](ctx, d.coll(collInspirations),
		inspirationFilter(inspiration.UserID, inspiration.InspiredByID), inspiration)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert inspiration: %w", mongoTranslate(err))
	}
	return previous, nil
}

// DeleteInspiration 删除关注关系
func (d *mongoDAO) DeleteInspiration(ctx context.Context, userID, inspiredByID int64) (bool, error) {
	res, err := d.coll(collInspirations).DeleteOne(ctx, inspirationFilter(userID, inspiredByID))
	if err != nil {
		return false, fmt.Errorf("failed to delete inspiration: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// ==================== 屏蔽 ====================

// GetBlocking 获取屏蔽关系
func (d *mongoDAO) GetBlocking(ctx context.Context, fromUserID, toUserID int64) (*model.Blocking, error) {
	var blocking model.Blocking
	found, err := findOne(ctx, d.coll(collBlockings), pairFilter(fromUserID, toUserID), &blocking)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocking: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &blocking, nil
}

// ListBlockings 用户屏蔽的人
func (d *mongoDAO) ListBlockings(ctx context.Context, fromUserID int64) ([]*model.Blocking, error) {
	blockings, err := findAll[model.Blocking](ctx, d.coll(collBlockings), bson.M{"from_user_id": fromUserID},
		bson.D{{Key: "_id", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("failed to list blockings: %w", err)
	}
	return blockings, nil
}

// UpsertBlocking 不存在时插入，返回已存在的记录
func (d *mongoDAO) UpsertBlocking(ctx context.Context, blocking *model.Blocking) (*model.Blocking, error) {
	previous, err := insertIfAbsent[model.Blocking](ctx, d.coll(collBlockings),
		pairFilter(blocking.FromUserID, blocking.ToUserID), blocking)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert blocking: %w", mongoTranslate(err))
	}
	return previous, nil
}

// DeleteBlocking 删除屏蔽关系
func (d *mongoDAO) DeleteBlocking(ctx context.Context, fromUserID, toUserID int64) (bool, error) {
	res, err := d.coll(collBlockings).DeleteOne(ctx, pairFilter(fromUserID, toUserID))
	if err != nil {
		return false, fmt.Errorf("failed to delete blocking: %w", err)
	}
	return res.DeletedCount > 0, nil
}
