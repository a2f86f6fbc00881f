package dao

import (
	"context"
	"sort"
	"sync"

	"goim-relation/apps/relation-service/model"
)

type pair struct{ a, b int64 }

// memoryDAO 进程内实现，storage.driver=memory 以及测试使用
type memoryDAO struct {
	mu           sync.Mutex
	requests     map[pair]*model.FriendshipRequest
	friends      map[pair]*model.Friend
	inspirations map[pair]*model.Inspiration
	blockings    map[pair]*model.Blocking
}

// NewMemoryDAO 创建内存DAO
func NewMemoryDAO() RelationDAO {
	return &memoryDAO{
		requests:     make(map[pair]*model.FriendshipRequest),
		friends:      make(map[pair]*model.Friend),
		inspirations: make(map[pair]*model.Inspiration),
		blockings:    make(map[pair]*model.Blocking),
	}
}

func copyRequest(r *model.FriendshipRequest) *model.FriendshipRequest {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (d *memoryDAO) GetFriendshipRequest(_ context.Context, fromUserID, toUserID int64) (*model.FriendshipRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return copyRequest(d.requests[pair{fromUserID, toUserID}]), nil
}

func (d *memoryDAO) ListFriendshipRequests(_ context.Context, filter model.RequestFilter) ([]*model.FriendshipRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []*model.FriendshipRequest
	for _, r := range d.requests {
		if filter.Match(r) {
			result = append(result, copyRequest(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Created.Equal(result[j].Created) {
			return result[i].ID < result[j].ID
		}
		return result[i].Created.Before(result[j].Created)
	})
	return result, nil
}

func (d *memoryDAO) CountFriendshipRequests(_ context.Context, filter model.RequestFilter) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for _, r := range d.requests {
		if filter.Match(r) {
			n++
		}
	}
	return n, nil
}

func (d *memoryDAO) UpsertFriendshipRequest(_ context.Context, req *model.FriendshipRequest) (*model.FriendshipRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pair{req.FromUserID, req.ToUserID}
	existing, ok := d.requests[key]
	if !ok {
		d.requests[key] = copyRequest(req)
		return nil, nil
	}
	previous := copyRequest(existing)
	if existing.Rejected != nil {
		existing.Message = req.Message
		existing.Created = req.Created
		existing.Rejected = nil
		existing.Viewed = nil
	}
	return previous, nil
}

func (d *memoryDAO) SaveFriendshipRequest(_ context.Context, req *model.FriendshipRequest) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pair{req.FromUserID, req.ToUserID}
	if cur, ok := d.requests[key]; !ok || cur.ID != req.ID {
		return false, nil
	}
	d.requests[key] = copyRequest(req)
	return true, nil
}

func (d *memoryDAO) DeleteFriendshipRequest(_ context.Context, fromUserID, toUserID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pair{fromUserID, toUserID}
	if _, ok := d.requests[key]; !ok {
		return false, nil
	}
	delete(d.requests, key)
	return true, nil
}

func (d *memoryDAO) AcceptFriendshipRequest(_ context.Context, req *model.FriendshipRequest, edges [2]*model.Friend) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range edges {
		if _, ok := d.friends[pair{e.FromUserID, e.ToUserID}]; ok {
			return model.ErrUniquenessViolation
		}
	}
	for _, e := range edges {
		c := *e
		d.friends[pair{e.FromUserID, e.ToUserID}] = &c
	}
	delete(d.requests, pair{req.FromUserID, req.ToUserID})
	delete(d.requests, pair{req.ToUserID, req.FromUserID})
	return nil
}

func (d *memoryDAO) GetFriend(_ context.Context, fromUserID, toUserID int64) (*model.Friend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.friends[pair{fromUserID, toUserID}]
	if !ok {
		return nil, nil
	}
	c := *f
	return &c, nil
}

func (d *memoryDAO) ListFriends(_ context.Context, fromUserID int64) ([]*model.Friend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []*model.Friend
	for k, f := range d.friends {
		if k.a == fromUserID {
			c := *f
			result = append(result, &c)
		}
	}
	sortFriends(result)
	return result, nil
}

func (d *memoryDAO) ListFriendsBetween(_ context.Context, userA, userB int64) ([]*model.Friend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []*model.Friend
	for _, k := range []pair{{userA, userB}, {userB, userA}} {
		if f, ok := d.friends[k]; ok {
			c := *f
			result = append(result, &c)
		}
	}
	return result, nil
}

func (d *memoryDAO) CreateFriend(_ context.Context, friend *model.Friend) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pair{friend.FromUserID, friend.ToUserID}
	if _, ok := d.friends[key]; ok {
		return model.ErrUniquenessViolation
	}
	c := *friend
	d.friends[key] = &c
	return nil
}

func (d *memoryDAO) DeleteFriendsBetween(_ context.Context, userA, userB int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for _, k := range []pair{{userA, userB}, {userB, userA}} {
		if _, ok := d.friends[k]; ok {
			delete(d.friends, k)
			n++
		}
	}
	return n, nil
}

func (d *memoryDAO) GetInspiration(_ context.Context, userID, inspiredByID int64) (*model.Inspiration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.inspirations[pair{userID, inspiredByID}]
	if !ok {
		return nil, nil
	}
	c := *i
	return &c, nil
}

func (d *memoryDAO) listInspirations(match func(k pair) bool) []*model.Inspiration {
	var result []*model.Inspiration
	for k, i := range d.inspirations {
		if match(k) {
			c := *i
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (d *memoryDAO) ListInspirationsByUser(_ context.Context, userID int64) ([]*model.Inspiration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listInspirations(func(k pair) bool { return k.a == userID }), nil
}

func (d *memoryDAO) ListInspirationsByInspiredBy(_ context.Context, inspiredByID int64) ([]*model.Inspiration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listInspirations(func(k pair) bool { return k.b == inspiredByID }), nil
}

func (d *memoryDAO) UpsertInspiration(_ context.Context, inspiration *model.Inspiration) (*model.Inspiration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pair{inspiration.UserID, inspiration.InspiredByID}
	if existing, ok := d.inspirations[key]; ok {
		c := *existing
		return &c, nil
	}
	c := *inspiration
	d.inspirations[key] = &c
	return nil, nil
}

func (d *memoryDAO) DeleteInspiration(_ context.Context, userID, inspiredByID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pair{userID, inspiredByID}
	if _, ok := d.inspirations[key]; !ok {
		return false, nil
	}
	delete(d.inspirations, key)
	return true, nil
}

func (d *memoryDAO) GetBlocking(_ context.Context, fromUserID, toUserID int64) (*model.Blocking, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.blockings[pair{fromUserID, toUserID}]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (d *memoryDAO) ListBlockings(_ context.Context, fromUserID int64) ([]*model.Blocking, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []*model.Blocking
	for k, b := range d.blockings {
		if k.a == fromUserID {
			c := *b
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (d *memoryDAO) UpsertBlocking(_ context.Context, blocking *model.Blocking) (*model.Blocking, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pair{blocking.FromUserID, blocking.ToUserID}
	if existing, ok := d.blockings[key]; ok {
		c := *existing
		return &c, nil
	}
	c := *blocking
	d.blockings[key] = &c
	return nil, nil
}

func (d *memoryDAO) DeleteBlocking(_ context.Context, fromUserID, toUserID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pair{fromUserID, toUserID}
	if _, ok := d.blockings[key]; !ok {
		return false, nil
	}
	delete(d.blockings, key)
	return true, nil
}

func sortFriends(friends []*model.Friend) {
	sort.Slice(friends, func(i, j int) bool { return friends[i].ID < friends[j].ID })
}
