package cache

import (
	"strconv"
)

// Kind 关系视图的缓存类型
type Kind string

const (
	KindFriends                Kind = "friends"
	KindInspirations           Kind = "inspirations"   // 关注者（followers）
	KindInspirationals         Kind = "inspirationals" // 正在关注（following）
	KindRequests               Kind = "requests"
	KindSentRequests           Kind = "sent_requests"
	KindUnreadRequests         Kind = "unread_requests"
	KindUnreadRequestCount     Kind = "unread_request_count"
	KindReadRequests           Kind = "read_requests"
	KindRejectedRequests       Kind = "rejected_requests"
	KindUnrejectedRequests     Kind = "unrejected_requests"
	KindUnrejectedRequestCount Kind = "unrejected_request_count"
	KindBlocked                Kind = "blocked"
)

var keyPrefixes = map[Kind]string{
	KindFriends:                "f",
	KindInspirations:           "ifo",
	KindInspirationals:         "ifl",
	KindRequests:               "fr",
	KindSentRequests:           "sfr",
	KindUnreadRequests:         "fru",
	KindUnreadRequestCount:     "fruc",
	KindReadRequests:           "frr",
	KindRejectedRequests:       "frj",
	KindUnrejectedRequests:     "frur",
	KindUnrejectedRequestCount: "frurc",
	KindBlocked:                "bl",
}

// bustGroups requests 的所有过滤视图都来自同一组申请数据
var bustGroups = map[Kind][]Kind{
	KindRequests: {
		KindRequests,
		KindUnreadRequests,
		KindUnreadRequestCount,
		KindReadRequests,
		KindRejectedRequests,
		KindUnrejectedRequests,
		KindUnrejectedRequestCount,
	},
}

// Kinds 返回全部缓存类型
func Kinds() []Kind {
	return []Kind{
		KindFriends, KindInspirations, KindInspirationals,
		KindRequests, KindSentRequests,
		KindUnreadRequests, KindUnreadRequestCount, KindReadRequests,
		KindRejectedRequests, KindUnrejectedRequests, KindUnrejectedRequestCount,
		KindBlocked,
	}
}

// Valid 是否为已知类型
func (k Kind) Valid() bool {
	_, ok := keyPrefixes[k]
	return ok
}

// BustGroup 失效 k 时需要一起删除的类型
func (k Kind) BustGroup() []Kind {
	if group, ok := bustGroups[k]; ok {
		return group
	}
	return []Kind{k}
}

// Key 生成不带命名空间的缓存key，例如 f-42
func Key(kind Kind, userID int64) string {
	prefix, ok := keyPrefixes[kind]
	if !ok {
		panic("cache: unknown kind " + string(kind))
	}
	return prefix + "-" + strconv.FormatInt(userID, 10)
}
