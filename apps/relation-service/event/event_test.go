package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"goim-relation/apps/relation-service/model"
	"goim-relation/pkg/kafka"
	"goim-relation/pkg/logger"
	"goim-relation/pkg/metrics"
)

type recorder struct {
	events []Event
}

func (r *recorder) Handle(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return nil
}

func TestDispatcherFanOutInOrder(t *testing.T) {
	d := NewDispatcher(logger.NewNop())
	var order []string
	d.Subscribe("first", SubscriberFunc(func(context.Context, Event) error {
		order = append(order, "first")
		return nil
	}))
	d.Subscribe("second", SubscriberFunc(func(context.Context, Event) error {
		order = append(order, "second")
		return nil
	}))

	d.Emit(context.Background(), ForPair(BlockingCreated, 1, 2, time.Now()))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("delivery order = %v", order)
	}
}

func TestDispatcherIsolatesSubscriberFailures(t *testing.T) {
	d := NewDispatcher(logger.NewNop())
	rec := &recorder{}
	d.Subscribe("failing", SubscriberFunc(func(context.Context, Event) error {
		return errors.New("broker unavailable")
	}))
	d.Subscribe("panicking", SubscriberFunc(func(context.Context, Event) error {
		panic("boom")
	}))
	d.Subscribe("recorder", rec)

	failing := metrics.SubscriberFailures.WithLabelValues("failing", string(FriendRemoved))
	panicking := metrics.SubscriberFailures.WithLabelValues("panicking", string(FriendRemoved))
	beforeFailing, beforePanicking := testutil.ToFloat64(failing), testutil.ToFloat64(panicking)

	d.Emit(context.Background(), ForPair(FriendRemoved, 1, 2, time.Now()))

	if len(rec.events) != 1 {
		t.Fatalf("later subscriber received %d events, want 1", len(rec.events))
	}
	if got := testutil.ToFloat64(failing); got != beforeFailing+1 {
		t.Errorf("failing subscriber counter = %v", got)
	}
	if got := testutil.ToFloat64(panicking); got != beforePanicking+1 {
		t.Errorf("panicking subscriber counter = %v", got)
	}
}

func TestForRequestCopiesRequest(t *testing.T) {
	req := &model.FriendshipRequest{ID: 1, FromUserID: 3, ToUserID: 4, Message: "hi"}
	e := ForRequest(RequestCreated, req, time.Now())
	req.Message = "changed"

	if e.Request.Message != "hi" {
		t.Fatal("event must not alias the caller's request")
	}
	if e.FromUserID != 3 || e.ToUserID != 4 || e.ID == "" || e.OccurredAt.IsZero() {
		t.Fatalf("event not populated: %+v", e)
	}
}

func TestPartitionKey(t *testing.T) {
	tests := []struct {
		e    Event
		want int64
	}{
		{ForPair(BlockingCreated, 7, 8, time.Now()), 7},
		{Event{Name: InspirationCreated, UserID: 9}, 9},
		{Event{Name: InspirationalCreated, InspiredByID: 11}, 11},
	}
	for _, tt := range tests {
		if got := tt.e.PartitionKey(); got != tt.want {
			t.Errorf("%s PartitionKey = %d, want %d", tt.e.Name, got, tt.want)
		}
	}
}

func TestKafkaPublisher(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "relation_events" {
			return fmt.Errorf("topic = %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "5" {
			return fmt.Errorf("key = %s", key)
		}
		value, _ := msg.Value.Encode()
		var e Event
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		if e.Name != RequestAccepted || e.ToUserID != 6 {
			return fmt.Errorf("unexpected payload %s", value)
		}
		return nil
	})
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := kafka.NewProducer(mp)
	defer producer.Close()

	p := NewKafkaPublisher(producer, "relation_events")
	if err := p.Handle(context.Background(), ForPair(RequestAccepted, 5, 6, time.Now())); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := p.Handle(context.Background(), ForPair(RequestAccepted, 5, 6, time.Now())); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("err = %v, want ErrOutOfBrokers", err)
	}
}

type fakeConn struct {
	msgs []*nats.Msg
	err  error
}

func (c *fakeConn) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func TestNATSPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "relation")

	e := Event{ID: "evt-1", Name: InspirationRemoved, UserID: 3}
	if err := p.Handle(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if len(conn.msgs) != 1 {
		t.Fatalf("published %d messages", len(conn.msgs))
	}
	msg := conn.msgs[0]
	if msg.Subject != "relation.inspiration_removed" {
		t.Errorf("subject = %s", msg.Subject)
	}
	if msg.Header.Get("Event-Id") != "evt-1" {
		t.Errorf("Event-Id header = %q", msg.Header.Get("Event-Id"))
	}

	conn.err = nats.ErrConnectionClosed
	if err := p.Handle(context.Background(), e); !errors.Is(err, nats.ErrConnectionClosed) {
		t.Fatalf("err = %v", err)
	}
}

type captureSender struct {
	notices []Notice
}

func (s *captureSender) Send(_ context.Context, n Notice) error {
	s.notices = append(s.notices, n)
	return nil
}

type staticFriends map[int64][]int64

func (f staticFriends) FriendsOf(_ context.Context, userID int64) ([]int64, error) {
	return f[userID], nil
}

func noticeTypes(notices []Notice) map[string][]int64 {
	m := make(map[string][]int64)
	for _, n := range notices {
		m[n.Type] = append(m[n.Type], n.RecipientID)
	}
	return m
}

func TestNotifierRequestLifecycle(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier(sender, nil, NotifierOptions{}, logger.NewNop())
	ctx := context.Background()

	_ = n.Handle(ctx, ForRequest(RequestCreated, &model.FriendshipRequest{FromUserID: 1, ToUserID: 2}, time.Now()))
	_ = n.Handle(ctx, ForPair(RequestAccepted, 1, 2, time.Now()))
	_ = n.Handle(ctx, ForPair(FriendRemoved, 1, 2, time.Now()))
	_ = n.Handle(ctx, ForRequest(RequestRejected, &model.FriendshipRequest{FromUserID: 1, ToUserID: 2}, time.Now()))

	got := noticeTypes(sender.notices)
	if len(sender.notices) != 4 {
		t.Fatalf("sent %d notices, want 4: %v", len(sender.notices), got)
	}
	if r := got[NoticeFriendshipRequest]; len(r) != 1 || r[0] != 2 {
		t.Errorf("friendship_request recipients = %v", r)
	}
	if r := got[NoticeFriendshipRequestSent]; len(r) != 1 || r[0] != 1 {
		t.Errorf("friendship_request_sent recipients = %v", r)
	}
	if r := got[NoticeFriendshipAccept]; len(r) != 1 || r[0] != 1 {
		t.Errorf("friendship_accept recipients = %v", r)
	}
	if r := got[NoticeFriendshipAcceptSent]; len(r) != 1 || r[0] != 2 {
		t.Errorf("friendship_accept_sent recipients = %v", r)
	}
}

func TestNotifierSkipsResetRequest(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier(sender, nil, NotifierOptions{}, logger.NewNop())
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	reset := ForRequest(RequestCreated, &model.FriendshipRequest{FromUserID: 1, ToUserID: 2}, at)
	reset.Reset = true
	if err := n.Handle(context.Background(), reset); err != nil {
		t.Fatal(err)
	}
	if len(sender.notices) != 0 {
		t.Fatalf("reset request sent notices %v", noticeTypes(sender.notices))
	}

	if err := n.Handle(context.Background(), ForRequest(RequestCreated, &model.FriendshipRequest{FromUserID: 1, ToUserID: 2}, at)); err != nil {
		t.Fatal(err)
	}
	if len(sender.notices) != 2 {
		t.Fatalf("sent %d notices, want 2", len(sender.notices))
	}
	for _, notice := range sender.notices {
		if !notice.CreatedAt.Equal(at) {
			t.Errorf("notice CreatedAt = %v, want %v", notice.CreatedAt, at)
		}
	}
}

func TestNotifierOptionalNotices(t *testing.T) {
	sender := &captureSender{}
	friends := staticFriends{1: {2, 10, 11}, 2: {1, 20}}
	n := NewNotifier(sender, friends, NotifierOptions{
		NotifyAboutNewFriendsOfFriend: true,
		NotifyAboutFriendsRemoval:     true,
	}, logger.NewNop())
	ctx := context.Background()

	if err := n.Handle(ctx, ForPair(RequestAccepted, 1, 2, time.Now())); err != nil {
		t.Fatal(err)
	}
	other := noticeTypes(sender.notices)[NoticeFriendshipOtherConnect]
	if len(other) != 3 {
		t.Fatalf("otherconnect recipients = %v, want friends 10, 11 and 20", other)
	}

	sender.notices = nil
	_ = n.Handle(ctx, ForPair(FriendRemoved, 1, 2, time.Now()))
	_ = n.Handle(ctx, ForPair(FriendRemoved, 2, 1, time.Now()))
	removed := noticeTypes(sender.notices)[NoticeFriendshipFriendRemoved]
	if len(removed) != 2 || removed[0] != 1 || removed[1] != 2 {
		t.Fatalf("friend_removed recipients = %v", removed)
	}

	if len(n.NoticeTypes()) != 6 {
		t.Errorf("NoticeTypes = %v", n.NoticeTypes())
	}
}

func TestNotifierWithoutSenderIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil, NotifierOptions{}, nil)
	if err := n.Handle(context.Background(), ForPair(RequestAccepted, 1, 2, time.Now())); err != nil {
		t.Fatalf("nil sender should be a no-op: %v", err)
	}
}

func TestKafkaNoticeSender(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if msg.Topic != "notifications" || string(key) != "2" {
			return fmt.Errorf("topic=%s key=%s", msg.Topic, key)
		}
		return nil
	})
	producer := kafka.NewProducer(mp)
	defer producer.Close()

	s := NewKafkaNoticeSender(producer, "notifications")
	if err := s.Send(context.Background(), Notice{Type: NoticeFriendshipRequest, RecipientID: 2, ActorID: 1}); err != nil {
		t.Fatal(err)
	}
}
