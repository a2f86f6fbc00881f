package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"goim-relation/apps/relation-service/model"
	"goim-relation/apps/relation-service/service"
	tracecontext "goim-relation/pkg/context"
	"goim-relation/pkg/httpx"
	"goim-relation/pkg/logger"
)

// HTTPHandler HTTP处理器
type HTTPHandler struct {
	svc    *service.Service
	logger logger.Logger
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(svc *service.Service, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: log}
}

// RegisterRoutes 注册路由
func (h *HTTPHandler) RegisterRoutes(engine *gin.Engine) {
	friendGroup := engine.Group("/api/v1/friend")
	{
		friendGroup.POST("/send_request", h.SendFriendRequest)
		friendGroup.POST("/accept_request", h.AcceptFriendRequest)
		friendGroup.POST("/reject_request", h.RejectFriendRequest)
		friendGroup.POST("/cancel_request", h.CancelFriendRequest)
		friendGroup.POST("/view_request", h.ViewFriendRequest)
		friendGroup.POST("/requests", h.ListFriendRequests)
		friendGroup.POST("/request_count", h.CountFriendRequests)
		friendGroup.POST("/list", h.ListFriends)
		friendGroup.POST("/delete", h.DeleteFriend)
		friendGroup.POST("/check", h.CheckFriendship)
	}

	inspirationGroup := engine.Group("/api/v1/inspiration")
	{
		inspirationGroup.POST("/add", h.AddInspiration)
		inspirationGroup.POST("/remove", h.RemoveInspiration)
		inspirationGroup.POST("/check", h.CheckInspiration)
		inspirationGroup.POST("/followers", h.ListFollowers)
		inspirationGroup.POST("/following", h.ListFollowing)
	}

	blockingGroup := engine.Group("/api/v1/blocking")
	{
		blockingGroup.POST("/add", h.AddBlocking)
		blockingGroup.POST("/remove", h.RemoveBlocking)
		blockingGroup.POST("/check", h.CheckBlocking)
		blockingGroup.POST("/list", h.ListBlocked)
	}
}

// PairRequest 两个用户之间的操作
type PairRequest struct {
	FromUserID int64  `json:"from_user_id" binding:"required"`
	ToUserID   int64  `json:"to_user_id" binding:"required"`
	Message    string `json:"message"`
}

// UserRequest 单个用户的查询
type UserRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	View   string `json:"view"`
}

// InspirationRequest 关注操作
type InspirationRequest struct {
	UserID       int64 `json:"user_id" binding:"required"`
	InspiredByID int64 `json:"inspired_by_id" binding:"required"`
}

// CountResponse 计数结果
type CountResponse struct {
	Count int64 `json:"count"`
}

// CheckResponse 判断结果
type CheckResponse struct {
	Result bool `json:"result"`
}

// statusFor 领域错误到HTTP状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrSelfRelation), errors.Is(err, model.ErrMessageTooLong):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrBlocked):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicate), errors.Is(err, model.ErrUniquenessViolation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), msg, logger.F("error", err))
	} else {
		h.logger.Warn(c.Request.Context(), msg, logger.F("error", err))
	}
	httpx.Fail(c, status, err)
}

func bind[T any](h *HTTPHandler, c *gin.Context) (*T, bool) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(c.Request.Context(), "Invalid request", logger.F("error", err.Error()), logger.F("path", c.FullPath()))
		httpx.WriteObject(c, httpx.Response{Success: false, Message: "Invalid request format"}, err)
		return nil, false
	}
	return &req, true
}

// ============ 好友申请 ============

// SendFriendRequest 发送好友申请
func (h *HTTPHandler) SendFriendRequest(c *gin.Context) {
	req, ok := bind[PairRequest](h, c)
	if !ok {
		return
	}
	ctx := tracecontext.WithPair(c.Request.Context(), req.FromUserID, req.ToUserID)

	request, err := h.svc.AddFriend(ctx, req.FromUserID, req.ToUserID, req.Message)
	if err != nil {
		h.fail(c, "Send friend request failed", err)
		return
	}
	httpx.OK(c, request)
}

// requestAction 先加载申请，再执行状态迁移
func (h *HTTPHandler) requestAction(c *gin.Context, action string, fn func(*gin.Context, *model.FriendshipRequest) error) {
	req, ok := bind[PairRequest](h, c)
	if !ok {
		return
	}
	ctx := tracecontext.WithPair(c.Request.Context(), req.FromUserID, req.ToUserID)
	c.Request = c.Request.WithContext(ctx)

	request, err := h.svc.GetFriendshipRequest(ctx, req.FromUserID, req.ToUserID)
	if err != nil {
		h.fail(c, action+" friend request failed", err)
		return
	}
	if err := fn(c, request); err != nil {
		h.fail(c, action+" friend request failed", err)
		return
	}
	httpx.OK(c, request)
}

// AcceptFriendRequest 接受好友申请
func (h *HTTPHandler) AcceptFriendRequest(c *gin.Context) {
	h.requestAction(c, "Accept", func(c *gin.Context, r *model.FriendshipRequest) error {
		_, err := h.svc.Accept(c.Request.Context(), r)
		return err
	})
}

// RejectFriendRequest 拒绝好友申请
func (h *HTTPHandler) RejectFriendRequest(c *gin.Context) {
	h.requestAction(c, "Reject", func(c *gin.Context, r *model.FriendshipRequest) error {
		return h.svc.Reject(c.Request.Context(), r)
	})
}

// CancelFriendRequest 撤回好友申请
func (h *HTTPHandler) CancelFriendRequest(c *gin.Context) {
	h.requestAction(c, "Cancel", func(c *gin.Context, r *model.FriendshipRequest) error {
		_, err := h.svc.Cancel(c.Request.Context(), r)
		return err
	})
}

// ViewFriendRequest 标记申请已读
func (h *HTTPHandler) ViewFriendRequest(c *gin.Context) {
	h.requestAction(c, "View", func(c *gin.Context, r *model.FriendshipRequest) error {
		_, err := h.svc.MarkViewed(c.Request.Context(), r)
		return err
	})
}

// ListFriendRequests 按视图查询申请：all、sent、unread、read、rejected、unrejected
func (h *HTTPHandler) ListFriendRequests(c *gin.Context) {
	req, ok := bind[UserRequest](h, c)
	if !ok {
		return
	}
	ctx := tracecontext.WithUserID(c.Request.Context(), req.UserID)

	var (
		requests []*model.FriendshipRequest
		err      error
	)
	switch req.View {
	case "", "all":
		requests, err = h.svc.RequestsFor(ctx, req.UserID)
	case "sent":
		requests, err = h.svc.SentRequestsFrom(ctx, req.UserID)
	case "unread":
		requests, err = h.svc.UnreadRequestsFor(ctx, req.UserID)
	case "read":
		requests, err = h.svc.ReadRequestsFor(ctx, req.UserID)
	case "rejected":
		requests, err = h.svc.RejectedRequestsFor(ctx, req.UserID)
	case "unrejected":
		requests, err = h.svc.UnrejectedRequestsFor(ctx, req.UserID)
	default:
		httpx.Fail(c, http.StatusBadRequest, fmt.Errorf("unknown view %q", req.View))
		return
	}
	if err != nil {
		h.fail(c, "List friend requests failed", err)
		return
	}
	if requests == nil {
		requests = []*model.FriendshipRequest{}
	}
	httpx.OK(c, requests)
}

// CountFriendRequests 未读或未拒绝的申请数
func (h *HTTPHandler) CountFriendRequests(c *gin.Context) {
	req, ok := bind[UserRequest](h, c)
	if !ok {
		return
	}
	ctx := tracecontext.WithUserID(c.Request.Context(), req.UserID)

	var (
		count int64
		err   error
	)
	switch req.View {
	case "", "unread":
		count, err = h.svc.UnreadRequestCount(ctx, req.UserID)
	case "unrejected":
		count, err = h.svc.UnrejectedRequestCount(ctx, req.UserID)
	default:
		httpx.Fail(c, http.StatusBadRequest, fmt.Errorf("unknown view %q", req.View))
		return
	}
	if err != nil {
		h.fail(c, "Count friend requests failed", err)
		return
	}
	httpx.OK(c, CountResponse{Count: count})
}

// ============ 好友 ============

func (h *HTTPHandler) listUsers(c *gin.Context, msg string, fn func(*gin.Context, int64) ([]int64, error)) {
	req, ok := bind[UserRequest](h, c)
	if !ok {
		return
	}
	c.Request = c.Request.WithContext(tracecontext.WithUserID(c.Request.Context(), req.UserID))

	ids, err := fn(c, req.UserID)
	if err != nil {
		h.fail(c, msg, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	httpx.OK(c, ids)
}

func (h *HTTPHandler) checkPair(c *gin.Context, msg string, fn func(*gin.Context, int64, int64) (bool, error)) {
	req, ok := bind[PairRequest](h, c)
	if !ok {
		return
	}
	c.Request = c.Request.WithContext(tracecontext.WithPair(c.Request.Context(), req.FromUserID, req.ToUserID))

	result, err := fn(c, req.FromUserID, req.ToUserID)
	if err != nil {
		h.fail(c, msg, err)
		return
	}
	httpx.OK(c, CheckResponse{Result: result})
}

// ListFriends 好友列表
func (h *HTTPHandler) ListFriends(c *gin.Context) {
	h.listUsers(c, "List friends failed", func(c *gin.Context, userID int64) ([]int64, error) {
		return h.svc.FriendsOf(c.Request.Context(), userID)
	})
}

// DeleteFriend 删除好友，result 表示是否存在好友关系
func (h *HTTPHandler) DeleteFriend(c *gin.Context) {
	h.checkPair(c, "Delete friend failed", func(c *gin.Context, a, b int64) (bool, error) {
		return h.svc.RemoveFriend(c.Request.Context(), a, b)
	})
}

// CheckFriendship 是否为好友
func (h *HTTPHandler) CheckFriendship(c *gin.Context) {
	h.checkPair(c, "Check friendship failed", func(c *gin.Context, a, b int64) (bool, error) {
		return h.svc.AreFriends(c.Request.Context(), a, b)
	})
}

// ============ 关注 ============

// AddInspiration 关注
func (h *HTTPHandler) AddInspiration(c *gin.Context) {
	req, ok := bind[InspirationRequest](h, c)
	if !ok {
		return
	}
	ctx := tracecontext.WithPair(c.Request.Context(), req.UserID, req.InspiredByID)

	inspiration, err := h.svc.AddInspiration(ctx, req.UserID, req.InspiredByID)
	if err != nil {
		h.fail(c, "Add inspiration failed", err)
		return
	}
	httpx.OK(c, inspiration)
}

// RemoveInspiration 取消关注
func (h *HTTPHandler) RemoveInspiration(c *gin.Context) {
	req, ok := bind[InspirationRequest](h, c)
	if !ok {
		return
	}
	ctx := tracecontext.WithPair(c.Request.Context(), req.UserID, req.InspiredByID)

	removed, err := h.svc.RemoveInspiration(ctx, req.UserID, req.InspiredByID)
	if err != nil {
		h.fail(c, "Remove inspiration failed", err)
		return
	}
	httpx.OK(c, CheckResponse{Result: removed})
}

// CheckInspiration 是否已关注
func (h *HTTPHandler) CheckInspiration(c *gin.Context) {
	req, ok := bind[InspirationRequest](h, c)
	if !ok {
		return
	}
	ctx := tracecontext.WithPair(c.Request.Context(), req.UserID, req.InspiredByID)

	inspired, err := h.svc.IsInspired(ctx, req.UserID, req.InspiredByID)
	if err != nil {
		h.fail(c, "Check inspiration failed", err)
		return
	}
	httpx.OK(c, CheckResponse{Result: inspired})
}

// ListFollowers 关注者
func (h *HTTPHandler) ListFollowers(c *gin.Context) {
	h.listUsers(c, "List followers failed", func(c *gin.Context, userID int64) ([]int64, error) {
		return h.svc.InspiredByUser(c.Request.Context(), userID)
	})
}

// ListFollowing 正在关注
func (h *HTTPHandler) ListFollowing(c *gin.Context) {
	h.listUsers(c, "List following failed", func(c *gin.Context, userID int64) ([]int64, error) {
		return h.svc.UserInspiredBy(c.Request.Context(), userID)
	})
}

// ============ 屏蔽 ============

// AddBlocking 屏蔽用户
func (h *HTTPHandler) AddBlocking(c *gin.Context) {
	req, ok := bind[PairRequest](h, c)
	if !ok {
		return
	}
	ctx := tracecontext.WithPair(c.Request.Context(), req.FromUserID, req.ToUserID)

	blocking, err := h.svc.AddBlocking(ctx, req.FromUserID, req.ToUserID)
	if err != nil {
		h.fail(c, "Add blocking failed", err)
		return
	}
	httpx.OK(c, blocking)
}

// RemoveBlocking 解除屏蔽
func (h *HTTPHandler) RemoveBlocking(c *gin.Context) {
	h.checkPair(c, "Remove blocking failed", func(c *gin.Context, from, to int64) (bool, error) {
		return h.svc.RemoveBlocking(c.Request.Context(), from, to)
	})
}

// CheckBlocking from 是否屏蔽了 to
func (h *HTTPHandler) CheckBlocking(c *gin.Context) {
	h.checkPair(c, "Check blocking failed", func(c *gin.Context, from, to int64) (bool, error) {
		return h.svc.IsBlocked(c.Request.Context(), from, to)
	})
}

// ListBlocked 屏蔽列表
func (h *HTTPHandler) ListBlocked(c *gin.Context) {
	h.listUsers(c, "List blocked users failed", func(c *gin.Context, userID int64) ([]int64, error) {
		return h.svc.BlockedByUser(c.Request.Context(), userID)
	})
}
