package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"goim-relation/apps/relation-service/model"
)

// Name 领域事件名称
type Name string

const (
	RequestCreated       Name = "request_created"
	RequestAccepted      Name = "request_accepted"
	RequestRejected      Name = "request_rejected"
	RequestCanceled      Name = "request_canceled"
	RequestViewed        Name = "request_viewed"
	FriendRemoved        Name = "friend_removed"
	InspirationCreated   Name = "inspiration_created"
	InspirationalCreated Name = "inspirational_created"
	InspirationRemoved   Name = "inspiration_removed"
	InspirationalRemoved Name = "inspirational_removed"
	BlockingCreated      Name = "blocking_created"
	BlockingRemoved      Name = "blocking_removed"
)

// Event 关系变更事件
//
// 不同事件使用不同字段：申请类事件携带 Request；
// 好友和屏蔽事件携带 FromUserID/ToUserID；关注事件携带 UserID 或 InspiredByID。
// Reset 仅用于 RequestCreated，表示重新发送了一条已被拒绝的申请。
type Event struct {
	ID           string                   `json:"id"`
	Name         Name                     `json:"name"`
	OccurredAt   time.Time                `json:"occurred_at"`
	Request      *model.FriendshipRequest `json:"request,omitempty"`
	FromUserID   int64                    `json:"from_user_id,omitempty"`
	ToUserID     int64                    `json:"to_user_id,omitempty"`
	UserID       int64                    `json:"user_id,omitempty"`
	InspiredByID int64                    `json:"inspired_by_id,omitempty"`
	Reset        bool                     `json:"reset,omitempty"`
}

// New 创建事件，at 由调用方的时钟给出
func New(name Name, at time.Time) Event {
	return Event{ID: uuid.NewString(), Name: name, OccurredAt: at}
}

// ForRequest 申请类事件
func ForRequest(name Name, req *model.FriendshipRequest, at time.Time) Event {
	e := New(name, at)
	if req != nil {
		c := *req
		e.Request = &c
		e.FromUserID = req.FromUserID
		e.ToUserID = req.ToUserID
	}
	return e
}

// ForPair 好友和屏蔽事件
func ForPair(name Name, fromUserID, toUserID int64, at time.Time) Event {
	e := New(name, at)
	e.FromUserID = fromUserID
	e.ToUserID = toUserID
	return e
}

// PartitionKey 事件的主要用户，用于消息分区
func (e Event) PartitionKey() int64 {
	switch {
	case e.FromUserID != 0:
		return e.FromUserID
	case e.UserID != 0:
		return e.UserID
	default:
		return e.InspiredByID
	}
}

// Emitter 事件发射端口
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Subscriber 事件订阅者，返回的错误只会被记录
type Subscriber interface {
	Handle(ctx context.Context, e Event) error
}

// SubscriberFunc 函数适配器
type SubscriberFunc func(ctx context.Context, e Event) error

func (f SubscriberFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}
