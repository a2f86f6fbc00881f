package model

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxMessageLength 好友申请附言的最大字符数
const MaxMessageLength = 1000

// 好友申请状态（接受和取消后记录被删除，不会出现在存储中）
const (
	RequestStatePending  = "pending"
	RequestStateRejected = "rejected"
)

// FriendshipRequest 好友申请，(FromUserID, ToUserID) 唯一
type FriendshipRequest struct {
	ID         int64      `gorm:"primaryKey;autoIncrement:false" json:"id" bson:"_id"`
	FromUserID int64      `gorm:"not null;uniqueIndex:uk_friendship_request_pair,priority:1" json:"from_user_id" bson:"from_user_id"`
	ToUserID   int64      `gorm:"not null;uniqueIndex:uk_friendship_request_pair,priority:2;index" json:"to_user_id" bson:"to_user_id"`
	Message    string     `gorm:"size:1000" json:"message" bson:"message"`
	Created    time.Time  `gorm:"not null" json:"created" bson:"created"`
	Rejected   *time.Time `json:"rejected,omitempty" bson:"rejected"` // nil 表示未拒绝
	Viewed     *time.Time `json:"viewed,omitempty" bson:"viewed"`     // nil 表示未读
}

// TableName 表名
func (FriendshipRequest) TableName() string { return "friendship_requests" }

// State 当前状态
func (r *FriendshipRequest) State() string {
	if r.Rejected != nil {
		return RequestStateRejected
	}
	return RequestStatePending
}

// IsPending 未被拒绝的申请
func (r *FriendshipRequest) IsPending() bool {
	return r.Rejected == nil
}

// Validate 校验申请字段
func (r *FriendshipRequest) Validate() error {
	if r.FromUserID == r.ToUserID {
		return fmt.Errorf("users cannot be friends with themselves: %w", ErrSelfRelation)
	}
	if utf8.RuneCountInString(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

func (r *FriendshipRequest) String() string {
	return fmt.Sprintf("User #%d friendship requested #%d", r.FromUserID, r.ToUserID)
}

// Friend 单向好友边，互为好友时 (A->B) 和 (B->A) 两条记录同时存在
type Friend struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id" bson:"_id"`
	FromUserID int64     `gorm:"not null;uniqueIndex:uk_friend_pair,priority:1" json:"from_user_id" bson:"from_user_id"`
	ToUserID   int64     `gorm:"not null;uniqueIndex:uk_friend_pair,priority:2;index" json:"to_user_id" bson:"to_user_id"`
	Created    time.Time `gorm:"not null" json:"created" bson:"created"`
}

// TableName 表名
func (Friend) TableName() string { return "friends" }

// Validate 不允许和自己成为好友
func (f *Friend) Validate() error {
	if f.FromUserID == f.ToUserID {
		return fmt.Errorf("users cannot be friends with themselves: %w", ErrSelfRelation)
	}
	return nil
}

func (f *Friend) String() string {
	return fmt.Sprintf("User #%d is friends with #%d", f.FromUserID, f.ToUserID)
}

// Inspiration UserID 受 InspiredByID 启发（关注），单向
type Inspiration struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id" bson:"_id"`
	UserID       int64     `gorm:"not null;uniqueIndex:uk_inspiration_pair,priority:1" json:"user_id" bson:"user_id"`
	InspiredByID int64     `gorm:"not null;uniqueIndex:uk_inspiration_pair,priority:2;index" json:"inspired_by_id" bson:"inspired_by_id"`
	Created      time.Time `gorm:"not null" json:"created" bson:"created"`
}

// TableName 表名
func (Inspiration) TableName() string { return "inspirations" }

// Validate 不允许关注自己
func (i *Inspiration) Validate() error {
	if i.UserID == i.InspiredByID {
		return fmt.Errorf("users cannot inspire themselves: %w", ErrSelfRelation)
	}
	return nil
}

func (i *Inspiration) String() string {
	return fmt.Sprintf("User #%d inspired by #%d", i.UserID, i.InspiredByID)
}

// Blocking FromUserID 屏蔽了 ToUserID
type Blocking struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id" bson:"_id"`
	FromUserID int64     `gorm:"not null;uniqueIndex:uk_blocking_pair,priority:1" json:"from_user_id" bson:"from_user_id"`
	ToUserID   int64     `gorm:"not null;uniqueIndex:uk_blocking_pair,priority:2;index" json:"to_user_id" bson:"to_user_id"`
	Created    time.Time `gorm:"not null" json:"created" bson:"created"`
}

// TableName 表名
func (Blocking) TableName() string { return "blockings" }

// Validate 不允许屏蔽自己
func (b *Blocking) Validate() error {
	if b.FromUserID == b.ToUserID {
		return fmt.Errorf("users cannot block themselves: %w", ErrSelfRelation)
	}
	return nil
}

func (b *Blocking) String() string {
	return fmt.Sprintf("User #%d blocked #%d", b.FromUserID, b.ToUserID)
}

// RequestFilter 好友申请查询条件，nil字段不参与过滤
type RequestFilter struct {
	FromUserID *int64
	ToUserID   *int64
	Viewed     *bool // true: viewed 非空；false: viewed 为空
	Rejected   *bool // true: rejected 非空；false: rejected 为空
}

// Match 判断申请是否满足过滤条件
func (f RequestFilter) Match(r *FriendshipRequest) bool {
	if f.FromUserID != nil && r.FromUserID != *f.FromUserID {
		return false
	}
	if f.ToUserID != nil && r.ToUserID != *f.ToUserID {
		return false
	}
	if f.Viewed != nil && (r.Viewed != nil) != *f.Viewed {
		return false
	}
	if f.Rejected != nil && (r.Rejected != nil) != *f.Rejected {
		return false
	}
	return true
}

// Bool 便于构造过滤条件
func Bool(v bool) *bool { return &v }

// UserID 用户ID的指针，0 也是合法的用户ID
func UserID(v int64) *int64 { return &v }

// TimePtr 返回t的指针
func TimePtr(t time.Time) *time.Time { return &t }
