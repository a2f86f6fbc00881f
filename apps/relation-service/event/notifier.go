package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"goim-relation/pkg/logger"
)

// 通知类型
const (
	NoticeFriendshipRequest       = "friendship_request"
	NoticeFriendshipRequestSent   = "friendship_request_sent"
	NoticeFriendshipAccept        = "friendship_accept"
	NoticeFriendshipAcceptSent    = "friendship_accept_sent"
	NoticeFriendshipOtherConnect  = "friendship_otherconnect"
	NoticeFriendshipFriendRemoved = "friendship_friend_removed"
)

// Notice 发给单个用户的通知
type Notice struct {
	Type        string    `json:"type"`
	RecipientID int64     `json:"recipient_id"`
	ActorID     int64     `json:"actor_id"`
	SubjectID   int64     `json:"subject_id,omitempty"` // otherconnect：新好友
	EventID     string    `json:"event_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NoticeSender 通知投递端
type NoticeSender interface {
	Send(ctx context.Context, n Notice) error
}

// FriendLister 查询好友列表，用于好友的好友通知
type FriendLister interface {
	FriendsOf(ctx context.Context, userID int64) ([]int64, error)
}

// NotifierOptions 可选通知开关
type NotifierOptions struct {
	NotifyAboutNewFriendsOfFriend bool
	NotifyAboutFriendsRemoval     bool
}

// Notifier 把关系事件转换为用户通知；sender 为 nil 时不做任何事
type Notifier struct {
	sender  NoticeSender
	friends FriendLister
	opts    NotifierOptions
	logger  logger.Logger
}

// NewNotifier 创建通知订阅者，friends 仅在开启好友的好友通知时需要
func NewNotifier(sender NoticeSender, friends FriendLister, opts NotifierOptions, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &Notifier{sender: sender, friends: friends, opts: opts, logger: log}
}

// NoticeTypes 当前配置下会产生的通知类型
func (n *Notifier) NoticeTypes() []string {
	types := []string{
		NoticeFriendshipRequest,
		NoticeFriendshipRequestSent,
		NoticeFriendshipAccept,
		NoticeFriendshipAcceptSent,
	}
	if n.opts.NotifyAboutNewFriendsOfFriend {
		types = append(types, NoticeFriendshipOtherConnect)
	}
	if n.opts.NotifyAboutFriendsRemoval {
		types = append(types, NoticeFriendshipFriendRemoved)
	}
	return types
}

func (n *Notifier) Handle(ctx context.Context, e Event) error {
	if n.sender == nil {
		return nil
	}
	notices, err := n.notices(ctx, e)
	if err != nil {
		return err
	}
	for _, notice := range notices {
		if err := n.sender.Send(ctx, notice); err != nil {
			return fmt.Errorf("failed to send %s notice to user %d: %w", notice.Type, notice.RecipientID, err)
		}
	}
	if len(notices) > 0 {
		n.logger.Debug(ctx, "Notices sent",
			logger.F("event", string(e.Name)),
			logger.F("count", len(notices)))
	}
	return nil
}

func (n *Notifier) notices(ctx context.Context, e Event) ([]Notice, error) {
	notice := func(typ string, recipient, actor int64) Notice {
		return Notice{Type: typ, RecipientID: recipient, ActorID: actor, EventID: e.ID, CreatedAt: e.OccurredAt}
	}

	switch e.Name {
	case RequestCreated:
		// 重置的申请在首次发送时已经通知过
		if e.Reset {
			return nil, nil
		}
		return []Notice{
			notice(NoticeFriendshipRequest, e.ToUserID, e.FromUserID),
			notice(NoticeFriendshipRequestSent, e.FromUserID, e.ToUserID),
		}, nil

	case RequestAccepted:
		notices := []Notice{
			notice(NoticeFriendshipAccept, e.FromUserID, e.ToUserID),
			notice(NoticeFriendshipAcceptSent, e.ToUserID, e.FromUserID),
		}
		if !n.opts.NotifyAboutNewFriendsOfFriend || n.friends == nil {
			return notices, nil
		}
		for _, p := range [][2]int64{{e.FromUserID, e.ToUserID}, {e.ToUserID, e.FromUserID}} {
			user, newFriend := p[0], p[1]
			friends, err := n.friends.FriendsOf(ctx, user)
			if err != nil {
				return nil, fmt.Errorf("failed to list friends of %d: %w", user, err)
			}
			for _, friend := range friends {
				if friend == newFriend {
					continue
				}
				other := notice(NoticeFriendshipOtherConnect, friend, user)
				other.SubjectID = newFriend
				notices = append(notices, other)
			}
		}
		return notices, nil

	case FriendRemoved:
		if !n.opts.NotifyAboutFriendsRemoval {
			return nil, nil
		}
		// 每条边各发一次事件，通知边的所有者即可覆盖双方
		return []Notice{notice(NoticeFriendshipFriendRemoved, e.FromUserID, e.ToUserID)}, nil
	}
	return nil, nil
}

// KafkaNoticeSender 把通知写入通知服务的Kafka主题
type KafkaNoticeSender struct {
	sender MessageSender
	topic  string
}

// NewKafkaNoticeSender 创建Kafka通知投递端
func NewKafkaNoticeSender(sender MessageSender, topic string) *KafkaNoticeSender {
	return &KafkaNoticeSender{sender: sender, topic: topic}
}

func (s *KafkaNoticeSender) Send(ctx context.Context, n Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}
	return s.sender.SendMessage(ctx, s.topic, []byte(strconv.FormatInt(n.RecipientID, 10)), data)
}
