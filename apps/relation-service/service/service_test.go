package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"goim-relation/apps/relation-service/cache"
	"goim-relation/apps/relation-service/dao"
	"goim-relation/apps/relation-service/event"
	"goim-relation/apps/relation-service/model"
	"goim-relation/pkg/logger"
	"goim-relation/pkg/snowflake"
)

const (
	bob int64 = iota + 1
	steve
	susan
	amy
)

type eventLog struct {
	mu     sync.Mutex
	events []event.Event
}

func (l *eventLog) Emit(_ context.Context, e event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) named(name event.Name) []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []event.Event
	for _, e := range l.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

type fixture struct {
	svc    *Service
	dao    dao.RelationDAO
	store  *cache.MemoryCache
	events *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ids, err := snowflake.NewSnowflake(1)
	if err != nil {
		t.Fatal(err)
	}
	store := cache.NewMemoryCache()
	d := dao.NewMemoryDAO()
	events := &eventLog{}
	svc := NewService(d, cache.NewFacade(store, "", logger.NewNop()), ids, logger.NewNop(), WithEmitter(events))
	return &fixture{svc: svc, dao: d, store: store, events: events}
}

func (f *fixture) befriend(t *testing.T, a, b int64) {
	t.Helper()
	ctx := context.Background()
	req, err := f.svc.AddFriend(ctx, a, b, "")
	if err != nil {
		t.Fatalf("AddFriend(%d, %d): %v", a, b, err)
	}
	if ok, err := f.svc.Accept(ctx, req); err != nil || !ok {
		t.Fatalf("Accept: %v, %v", ok, err)
	}
}

func TestAcceptCreatesMutualFriendship(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 预热缓存，确认接受后会失效
	if friends, _ := f.svc.FriendsOf(ctx, bob); len(friends) != 0 {
		t.Fatalf("bob starts with friends %v", friends)
	}

	req, err := f.svc.AddFriend(ctx, bob, steve, "Hi Steve")
	if err != nil {
		t.Fatal(err)
	}
	if req.Message != "Hi Steve" || req.State() != model.RequestStatePending {
		t.Fatalf("unexpected request %+v", req)
	}
	if ok, err := f.svc.Accept(ctx, req); err != nil || !ok {
		t.Fatalf("Accept = %v, %v", ok, err)
	}

	for _, pair := range [][2]int64{{bob, steve}, {steve, bob}} {
		ok, err := f.svc.AreFriends(ctx, pair[0], pair[1])
		if err != nil || !ok {
			t.Errorf("AreFriends(%d, %d) = %v, %v", pair[0], pair[1], ok, err)
		}
	}
	if friends, _ := f.svc.FriendsOf(ctx, bob); len(friends) != 1 || friends[0] != steve {
		t.Errorf("FriendsOf(bob) = %v", friends)
	}
	if friends, _ := f.svc.FriendsOf(ctx, steve); len(friends) != 1 || friends[0] != bob {
		t.Errorf("FriendsOf(steve) = %v", friends)
	}
	if requests, _ := f.svc.RequestsFor(ctx, steve); len(requests) != 0 {
		t.Errorf("accepted request still listed: %v", requests)
	}

	accepted := f.events.named(event.RequestAccepted)
	if len(accepted) != 1 || accepted[0].FromUserID != bob || accepted[0].ToUserID != steve {
		t.Errorf("RequestAccepted events = %+v", accepted)
	}
	if len(f.events.named(event.RequestCreated)) != 1 {
		t.Error("expected one RequestCreated event")
	}
}

func TestAcceptDeletesReverseRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, _ := f.svc.AddFriend(ctx, bob, steve, "")
	if _, err := f.svc.AddFriend(ctx, steve, bob, ""); err != nil {
		t.Fatal(err)
	}
	if requests, _ := f.svc.RequestsFor(ctx, bob); len(requests) != 1 {
		t.Fatalf("bob should have the reverse request, got %d", len(requests))
	}

	if _, err := f.svc.Accept(ctx, req); err != nil {
		t.Fatal(err)
	}

	if requests, _ := f.svc.RequestsFor(ctx, bob); len(requests) != 0 {
		t.Errorf("reverse request survived accept: %v", requests)
	}
	if sent, _ := f.svc.SentRequestsFrom(ctx, steve); len(sent) != 0 {
		t.Errorf("steve's sent requests = %v", sent)
	}
}

func TestSelfRelationsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, user := range []int64{bob, steve, 1 << 40} {
		if _, err := f.svc.AddFriend(ctx, user, user, ""); !errors.Is(err, model.ErrSelfRelation) {
			t.Errorf("AddFriend(%d, %d) err = %v", user, user, err)
		}
		if _, err := f.svc.AddInspiration(ctx, user, user); !errors.Is(err, model.ErrSelfRelation) {
			t.Errorf("AddInspiration(%d, %d) err = %v", user, user, err)
		}
		if _, err := f.svc.AddBlocking(ctx, user, user); !errors.Is(err, model.ErrSelfRelation) {
			t.Errorf("AddBlocking(%d, %d) err = %v", user, user, err)
		}
	}
	if len(f.events.events) != 0 {
		t.Errorf("validation failures emitted events: %+v", f.events.events)
	}
}

func TestAddFriendMessageTooLong(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddFriend(context.Background(), bob, steve, strings.Repeat("x", model.MaxMessageLength+1))
	if !errors.Is(err, model.ErrMessageTooLong) {
		t.Fatalf("err = %v, want ErrMessageTooLong", err)
	}
}

func TestAddFriendDuplicateAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.AddFriend(ctx, bob, steve, "first")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddFriend(ctx, bob, steve, "second"); !errors.Is(err, model.ErrDuplicateRequest) {
		t.Fatalf("duplicate pending request err = %v", err)
	}
	if !errors.Is(model.ErrDuplicateRequest, model.ErrDuplicate) {
		t.Fatal("ErrDuplicateRequest must match ErrDuplicate")
	}

	if err := f.svc.Reject(ctx, first); err != nil {
		t.Fatal(err)
	}
	if rejected, _ := f.svc.RejectedRequestsFor(ctx, steve); len(rejected) != 1 {
		t.Fatalf("rejected requests = %d, want 1", len(rejected))
	}

	again, err := f.svc.AddFriend(ctx, bob, steve, "please")
	if err != nil {
		t.Fatalf("re-request after rejection: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("reset request id = %d, want %d", again.ID, first.ID)
	}
	stored, _ := f.svc.GetFriendshipRequest(ctx, bob, steve)
	if stored.Rejected != nil || stored.Viewed != nil || stored.Message != "please" {
		t.Errorf("request not reset: %+v", stored)
	}
	if rejected, _ := f.svc.RejectedRequestsFor(ctx, steve); len(rejected) != 0 {
		t.Errorf("rejected view is stale: %d", len(rejected))
	}
	if n, _ := f.svc.UnrejectedRequestCount(ctx, steve); n != 1 {
		t.Errorf("UnrejectedRequestCount = %d, want 1", n)
	}

	created := f.events.named(event.RequestCreated)
	if len(created) != 2 || created[0].Reset || !created[1].Reset {
		t.Errorf("RequestCreated events = %+v, want the second one marked as reset", created)
	}
}

func TestZeroUserIDIsNotAWildcard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddFriend(ctx, bob, steve, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddFriend(ctx, susan, amy, ""); err != nil {
		t.Fatal(err)
	}
	if requests, _ := f.svc.RequestsFor(ctx, 0); len(requests) != 0 {
		t.Errorf("RequestsFor(0) = %d requests, want 0", len(requests))
	}
	if requests, _ := f.svc.SentRequestsFrom(ctx, 0); len(requests) != 0 {
		t.Errorf("SentRequestsFrom(0) = %d requests, want 0", len(requests))
	}
	if n, _ := f.svc.UnreadRequestCount(ctx, 0); n != 0 {
		t.Errorf("UnreadRequestCount(0) = %d, want 0", n)
	}

	// 0 是普通用户ID
	if _, err := f.svc.AddFriend(ctx, 0, bob, ""); err != nil {
		t.Fatal(err)
	}
	if requests, _ := f.svc.RequestsFor(ctx, bob); len(requests) != 1 || requests[0].FromUserID != 0 {
		t.Errorf("RequestsFor(bob) = %v", requests)
	}
	if requests, _ := f.svc.SentRequestsFrom(ctx, 0); len(requests) != 1 || requests[0].ToUserID != bob {
		t.Errorf("SentRequestsFrom(0) = %v", requests)
	}
}

func TestEventsUseServiceClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return at }

	req, err := f.svc.AddFriend(ctx, bob, steve, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Reject(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddBlocking(ctx, amy, susan); err != nil {
		t.Fatal(err)
	}
	if !req.Created.Equal(at) {
		t.Fatalf("request created at %v, want %v", req.Created, at)
	}
	for _, e := range f.events.events {
		if !e.OccurredAt.Equal(at) {
			t.Errorf("%s occurred at %v, want %v", e.Name, e.OccurredAt, at)
		}
	}
}

func TestRejectAfterCancelDoesNotRecreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.AddFriend(ctx, bob, steve, "")
	if err != nil {
		t.Fatal(err)
	}
	stale := *req
	if ok, err := f.svc.Cancel(ctx, req); err != nil || !ok {
		t.Fatalf("Cancel = %v, %v", ok, err)
	}

	if err := f.svc.Reject(ctx, &stale); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Reject of a canceled request err = %v, want ErrNotFound", err)
	}
	if ok, err := f.svc.MarkViewed(ctx, &stale); err != nil || ok {
		t.Fatalf("MarkViewed of a canceled request = %v, %v", ok, err)
	}
	if got, _ := f.dao.GetFriendshipRequest(ctx, bob, steve); got != nil {
		t.Fatalf("canceled request was recreated: %+v", got)
	}
	if len(f.events.named(event.RequestRejected)) != 0 || len(f.events.named(event.RequestViewed)) != 0 {
		t.Error("no events for a request that no longer exists")
	}
}

func TestConcurrentAddFriendCreatesOneRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, duplicates := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddFriend(ctx, bob, steve, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, model.ErrDuplicateRequest):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || duplicates != 19 {
		t.Fatalf("created=%d duplicates=%d", created, duplicates)
	}
}

func TestRemoveFriend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.befriend(t, bob, steve)
	f.events.reset()

	ok, err := f.svc.RemoveFriend(ctx, steve, bob)
	if err != nil || !ok {
		t.Fatalf("RemoveFriend = %v, %v", ok, err)
	}
	if friends, _ := f.svc.AreFriends(ctx, bob, steve); friends {
		t.Error("still friends after removal")
	}
	if friends, _ := f.svc.FriendsOf(ctx, steve); len(friends) != 0 {
		t.Errorf("FriendsOf(steve) = %v", friends)
	}

	removed := f.events.named(event.FriendRemoved)
	if len(removed) != 2 {
		t.Fatalf("FriendRemoved events = %d, want one per edge", len(removed))
	}
	seen := map[[2]int64]bool{}
	for _, e := range removed {
		seen[[2]int64{e.FromUserID, e.ToUserID}] = true
	}
	if !seen[[2]int64{bob, steve}] || !seen[[2]int64{steve, bob}] {
		t.Errorf("events do not carry each edge's orientation: %v", seen)
	}

	ok, err = f.svc.RemoveFriend(ctx, bob, steve)
	if err != nil || ok {
		t.Fatalf("second RemoveFriend = %v, %v; want false", ok, err)
	}
}

func TestRemoveFriendSingleEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.dao.CreateFriend(ctx, &model.Friend{ID: 1, FromUserID: amy, ToUserID: susan}); err != nil {
		t.Fatal(err)
	}

	if ok, _ := f.svc.RemoveFriend(ctx, susan, amy); !ok {
		t.Fatal("RemoveFriend should find the single edge")
	}
	removed := f.events.named(event.FriendRemoved)
	if len(removed) != 1 || removed[0].FromUserID != amy || removed[0].ToUserID != susan {
		t.Fatalf("FriendRemoved = %+v", removed)
	}
}

func TestAreFriendsStoreFallbackChecksOneDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.dao.CreateFriend(ctx, &model.Friend{ID: 1, FromUserID: bob, ToUserID: steve}); err != nil {
		t.Fatal(err)
	}

	if ok, _ := f.svc.AreFriends(ctx, steve, bob); !ok {
		t.Error("AreFriends(steve, bob) should find edge bob->steve in the store")
	}
	if ok, _ := f.svc.AreFriends(ctx, bob, steve); ok {
		t.Error("store fallback only checks from=b, to=a")
	}

	// 缓存中的好友列表优先
	if friends, _ := f.svc.FriendsOf(ctx, bob); len(friends) != 1 {
		t.Fatalf("FriendsOf(bob) = %v", friends)
	}
	if ok, _ := f.svc.AreFriends(ctx, bob, steve); !ok {
		t.Error("cached friends of bob contain steve")
	}
}

func TestBlockingRejectsIncomingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddFriend(ctx, bob, steve, ""); err != nil {
		t.Fatal(err)
	}
	if rejected, _ := f.svc.RejectedRequestsFor(ctx, steve); len(rejected) != 0 {
		t.Fatal("no rejected requests yet")
	}

	if _, err := f.svc.AddBlocking(ctx, steve, bob); err != nil {
		t.Fatal(err)
	}

	rejected, _ := f.svc.RejectedRequestsFor(ctx, steve)
	if len(rejected) != 1 || rejected[0].FromUserID != bob || rejected[0].State() != model.RequestStateRejected {
		t.Fatalf("RejectedRequestsFor(steve) = %+v", rejected)
	}
	if ok, _ := f.svc.IsBlocked(ctx, steve, bob); !ok {
		t.Error("IsBlocked(steve, bob) = false")
	}
	if ok, _ := f.svc.IsBlocked(ctx, bob, steve); ok {
		t.Error("IsBlocked(bob, steve) = true")
	}
	if blocked, _ := f.svc.BlockedByUser(ctx, steve); len(blocked) != 1 || blocked[0] != bob {
		t.Errorf("BlockedByUser(steve) = %v", blocked)
	}
	if len(f.events.named(event.RequestRejected)) != 1 || len(f.events.named(event.BlockingCreated)) != 1 {
		t.Error("expected RequestRejected and BlockingCreated events")
	}
}

func TestBlockingCancelsOutgoingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddFriend(ctx, bob, steve, ""); err != nil {
		t.Fatal(err)
	}
	if requests, _ := f.svc.RequestsFor(ctx, steve); len(requests) != 1 {
		t.Fatal("steve should see the request")
	}
	if sent, _ := f.svc.SentRequestsFrom(ctx, bob); len(sent) != 1 {
		t.Fatal("bob should see the sent request")
	}

	if _, err := f.svc.AddBlocking(ctx, bob, steve); err != nil {
		t.Fatal(err)
	}

	if requests, _ := f.svc.RequestsFor(ctx, steve); len(requests) != 0 {
		t.Errorf("RequestsFor(steve) = %v", requests)
	}
	if sent, _ := f.svc.SentRequestsFrom(ctx, bob); len(sent) != 0 {
		t.Errorf("SentRequestsFrom(bob) = %v", sent)
	}
	if len(f.events.named(event.RequestCanceled)) != 1 {
		t.Error("expected a RequestCanceled event")
	}
}

func TestBlockingRemovesFriendship(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.befriend(t, susan, amy)

	if _, err := f.svc.AddBlocking(ctx, amy, susan); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.svc.AreFriends(ctx, susan, amy); ok {
		t.Error("blocking must end the friendship")
	}
	if len(f.events.named(event.FriendRemoved)) != 2 {
		t.Error("expected FriendRemoved for both edges")
	}
}

func TestAddBlockingTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddBlocking(ctx, bob, steve); err != nil {
		t.Fatal(err)
	}
	// 对方在屏蔽前无法发起申请，这里直接写入存储模拟残留申请
	_, _ = f.dao.UpsertFriendshipRequest(ctx, &model.FriendshipRequest{ID: 99, FromUserID: steve, ToUserID: bob})

	_, err := f.svc.AddBlocking(ctx, bob, steve)
	if !errors.Is(err, model.ErrAlreadyBlocked) || !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrAlreadyBlocked", err)
	}
	if rejected, _ := f.svc.RejectedRequestsFor(ctx, bob); len(rejected) != 1 {
		t.Error("cascade should still run when the block already existed")
	}
	if len(f.events.named(event.BlockingCreated)) != 1 {
		t.Error("BlockingCreated must only be emitted once")
	}
}

func TestAddFriendRespectsBlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddBlocking(ctx, steve, bob); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddFriend(ctx, bob, steve, ""); !errors.Is(err, model.ErrBlocked) {
		t.Fatalf("AddFriend while blocked err = %v", err)
	}

	// 自己的屏蔽会被静默解除
	if _, err := f.svc.AddFriend(ctx, steve, bob, "sorry"); err != nil {
		t.Fatalf("AddFriend by the blocker: %v", err)
	}
	if ok, _ := f.svc.IsBlocked(ctx, steve, bob); ok {
		t.Error("block should have been lifted")
	}
	if blocked, _ := f.svc.BlockedByUser(ctx, steve); len(blocked) != 0 {
		t.Errorf("BlockedByUser(steve) = %v", blocked)
	}
	if len(f.events.named(event.BlockingRemoved)) != 1 {
		t.Error("expected a BlockingRemoved event")
	}
}

func TestAddFriendAfterLiftingBlockResetsPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 屏蔽之后残留一条待处理申请
	if _, err := f.svc.AddBlocking(ctx, bob, steve); err != nil {
		t.Fatal(err)
	}
	_, _ = f.dao.UpsertFriendshipRequest(ctx, &model.FriendshipRequest{ID: 7, FromUserID: bob, ToUserID: steve, Message: "old"})

	req, err := f.svc.AddFriend(ctx, bob, steve, "new")
	if err != nil {
		t.Fatalf("AddFriend after own block: %v", err)
	}
	if req.ID != 7 {
		t.Errorf("request id = %d, want the existing row", req.ID)
	}
	stored, _ := f.svc.GetFriendshipRequest(ctx, bob, steve)
	if stored.Message != "new" {
		t.Errorf("message = %q, want reset", stored.Message)
	}
}

func TestBlockingRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.svc.AddBlocking(ctx, amy, susan); err != nil {
			t.Fatalf("cycle %d AddBlocking: %v", i, err)
		}
		if ok, _ := f.svc.IsBlocked(ctx, amy, susan); !ok {
			t.Fatalf("cycle %d: not blocked", i)
		}
		if ok, err := f.svc.RemoveBlocking(ctx, amy, susan); err != nil || !ok {
			t.Fatalf("cycle %d RemoveBlocking = %v, %v", i, ok, err)
		}
		if ok, _ := f.svc.IsBlocked(ctx, amy, susan); ok {
			t.Fatalf("cycle %d: still blocked", i)
		}
	}
	if ok, _ := f.svc.RemoveBlocking(ctx, amy, susan); ok {
		t.Error("removing a missing block should return false")
	}
}

func TestMarkViewedUpdatesUnreadViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.AddFriend(ctx, bob, steve, "Testing friend request")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := f.svc.UnreadRequestCount(ctx, steve); n != 1 {
		t.Fatalf("UnreadRequestCount = %d, want 1", n)
	}
	if unread, _ := f.svc.UnreadRequestsFor(ctx, steve); len(unread) != 1 {
		t.Fatalf("UnreadRequestsFor = %d, want 1", len(unread))
	}
	if read, _ := f.svc.ReadRequestsFor(ctx, steve); len(read) != 0 {
		t.Fatalf("ReadRequestsFor = %d, want 0", len(read))
	}

	if ok, err := f.svc.MarkViewed(ctx, req); err != nil || !ok {
		t.Fatalf("MarkViewed = %v, %v", ok, err)
	}

	if n, _ := f.svc.UnreadRequestCount(ctx, steve); n != 0 {
		t.Errorf("UnreadRequestCount after view = %d", n)
	}
	if read, _ := f.svc.ReadRequestsFor(ctx, steve); len(read) != 1 {
		t.Errorf("ReadRequestsFor after view = %d", len(read))
	}
	if n, _ := f.svc.UnrejectedRequestCount(ctx, steve); n != 1 {
		t.Errorf("viewed request is still unrejected, count = %d", n)
	}
	if unrejected, _ := f.svc.UnrejectedRequestsFor(ctx, steve); len(unrejected) != 1 {
		t.Errorf("UnrejectedRequestsFor = %d", len(unrejected))
	}
	if len(f.events.named(event.RequestViewed)) != 1 {
		t.Error("expected a RequestViewed event")
	}
}

func TestCancelClearsRequestViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.AddFriend(ctx, susan, amy, "Testing friend request")
	if err != nil {
		t.Fatal(err)
	}
	if requests, _ := f.svc.RequestsFor(ctx, amy); len(requests) != 1 {
		t.Fatal("amy should see one request")
	}

	if ok, err := f.svc.Cancel(ctx, req); err != nil || !ok {
		t.Fatalf("Cancel = %v, %v", ok, err)
	}

	if requests, _ := f.svc.RequestsFor(ctx, susan); len(requests) != 0 {
		t.Errorf("RequestsFor(susan) = %v", requests)
	}
	if requests, _ := f.svc.RequestsFor(ctx, amy); len(requests) != 0 {
		t.Errorf("RequestsFor(amy) = %v", requests)
	}
	if sent, _ := f.svc.SentRequestsFrom(ctx, susan); len(sent) != 0 {
		t.Errorf("SentRequestsFrom(susan) = %v", sent)
	}
	if _, err := f.svc.GetFriendshipRequest(ctx, susan, amy); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetFriendshipRequest err = %v, want ErrNotFound", err)
	}
	if ok, _ := f.svc.Cancel(ctx, req); ok {
		t.Error("cancelling twice should return false")
	}
}

func TestInspirations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddInspiration(ctx, bob, steve); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.AddInspiration(ctx, bob, steve)
	if !errors.Is(err, model.ErrAlreadyInspired) || !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("duplicate AddInspiration err = %v", err)
	}
	if _, err := f.svc.AddInspiration(ctx, steve, bob); err != nil {
		t.Fatalf("reverse inspiration is independent: %v", err)
	}

	if followers, _ := f.svc.InspiredByUser(ctx, steve); len(followers) != 1 || followers[0] != bob {
		t.Errorf("InspiredByUser(steve) = %v", followers)
	}
	if following, _ := f.svc.UserInspiredBy(ctx, bob); len(following) != 1 || following[0] != steve {
		t.Errorf("UserInspiredBy(bob) = %v", following)
	}
	if ok, _ := f.svc.IsInspired(ctx, bob, steve); !ok {
		t.Error("IsInspired(bob, steve) = false")
	}
	if ok, _ := f.svc.IsInspired(ctx, bob, amy); ok {
		t.Error("IsInspired(bob, amy) = true")
	}

	created := f.events.named(event.InspirationCreated)
	inspirational := f.events.named(event.InspirationalCreated)
	if len(created) != 2 || created[0].UserID != bob || len(inspirational) != 2 || inspirational[0].InspiredByID != steve {
		t.Errorf("creation events: %+v / %+v", created, inspirational)
	}

	if ok, err := f.svc.RemoveInspiration(ctx, bob, steve); err != nil || !ok {
		t.Fatalf("RemoveInspiration = %v, %v", ok, err)
	}
	if ok, _ := f.svc.IsInspired(ctx, bob, steve); ok {
		t.Error("IsInspired after removal")
	}
	if followers, _ := f.svc.InspiredByUser(ctx, steve); len(followers) != 0 {
		t.Errorf("stale followers view: %v", followers)
	}
	if ok, _ := f.svc.RemoveInspiration(ctx, bob, steve); ok {
		t.Error("second RemoveInspiration should return false")
	}
	removed := f.events.named(event.InspirationRemoved)
	if len(removed) != 1 || removed[0].UserID != bob || len(f.events.named(event.InspirationalRemoved)) != 1 {
		t.Errorf("removal events: %+v", removed)
	}
}

type brokenStore struct {
	*cache.MemoryCache
}

func (brokenStore) DeleteMany(context.Context, ...string) error {
	return errors.New("cache unavailable")
}

func TestCacheInvalidationFailureDoesNotFailOperations(t *testing.T) {
	ids, _ := snowflake.NewSnowflake(2)
	d := dao.NewMemoryDAO()
	facade := cache.NewFacade(brokenStore{cache.NewMemoryCache()}, "", logger.NewNop())
	svc := NewService(d, facade, ids, logger.NewNop())
	ctx := context.Background()

	req, err := svc.AddFriend(ctx, bob, steve, "")
	if err != nil {
		t.Fatalf("AddFriend with broken cache: %v", err)
	}
	if _, err := svc.Accept(ctx, req); err != nil {
		t.Fatalf("Accept with broken cache: %v", err)
	}
	if edge, _ := d.GetFriend(ctx, steve, bob); edge == nil {
		t.Fatal("store mutation must persist")
	}
}

func TestSubscriberFailureDoesNotRollBack(t *testing.T) {
	ids, _ := snowflake.NewSnowflake(3)
	d := dao.NewMemoryDAO()
	dispatcher := event.NewDispatcher(logger.NewNop())
	dispatcher.Subscribe("broken", event.SubscriberFunc(func(context.Context, event.Event) error {
		return errors.New("notification service down")
	}))
	svc := NewService(d, cache.NewFacade(cache.NewMemoryCache(), "", nil), ids, logger.NewNop(), WithEmitter(dispatcher))
	ctx := context.Background()

	req, err := svc.AddFriend(ctx, susan, amy, "")
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := svc.Accept(ctx, req); err != nil || !ok {
		t.Fatalf("Accept = %v, %v", ok, err)
	}
	if ok, _ := svc.AreFriends(ctx, susan, amy); !ok {
		t.Fatal("friendship must survive subscriber failure")
	}
}

func TestNotifierReceivesFriendsOfFriend(t *testing.T) {
	f := newFixture(t)
	f.befriend(t, bob, amy)

	var notices []event.Notice
	dispatcher := event.NewDispatcher(logger.NewNop())
	dispatcher.Subscribe("notifier", event.NewNotifier(
		noticeFunc(func(_ context.Context, n event.Notice) error {
			notices = append(notices, n)
			return nil
		}),
		f.svc,
		event.NotifierOptions{NotifyAboutNewFriendsOfFriend: true},
		logger.NewNop(),
	))
	f.svc.events = dispatcher

	f.befriend(t, bob, steve)

	var other []int64
	for _, n := range notices {
		if n.Type == event.NoticeFriendshipOtherConnect {
			other = append(other, n.RecipientID)
		}
	}
	if len(other) != 1 || other[0] != amy {
		t.Fatalf("otherconnect recipients = %v, want amy", other)
	}
}

type noticeFunc func(ctx context.Context, n event.Notice) error

func (f noticeFunc) Send(ctx context.Context, n event.Notice) error { return f(ctx, n) }
