package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"planora_backend/pkg/logger"
	"planora_backend/pkg/monitoring"
	"planora_backend/pkg/security"
	"planora_backend/pkg/tracing"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 10
	sendBuffer     = 256
	onlineTTL      = 2 * time.Minute // 在线状态过期时间
	eventTimeout   = 5 * time.Second
)

// FriendGraph 网关需要的好友关系查询
// 转发给对方的好友记录一律取自存储，不使用客户端上报的 ID
type FriendGraph interface {
	CanCommunicate(ctx context.Context, a, b uint) (bool, error)
	PendingRequest(ctx context.Context, requester, addressee uint) (*model.Friendship, error)
	AcceptedFriendship(ctx context.Context, a, b uint) (*model.Friendship, error)
	FriendIDsOf(ctx context.Context, userID uint) ([]uint, error)
}

type messageCreator interface {
	Create(ctx context.Context, senderID uint, in SendMessageInput) (*model.Message, error)
	MarkRead(ctx context.Context, readerID, senderID uint, messageID string, at time.Time) (int64, error)
}

type presenceSetter interface {
	SetPresence(ctx context.Context, userID uint, online bool, at time.Time) error
}

type GatewayDeps struct {
	Friends  FriendGraph
	Messages messageCreator
	Presence presenceSetter
	Limiter  *security.EventLimiter
	Redis    *redis.Client
	// AllowedOrigins 为空时不校验 Origin
	AllowedOrigins []string
}

// Gateway 实时连接网关：认证后的连接按用户分组，所有上行事件先限流再鉴权
type Gateway struct {
	registry *Registry
	friends  FriendGraph
	messages messageCreator
	presence presenceSetter
	limiter  *security.EventLimiter
	redis    *redis.Client
	upgrader websocket.Upgrader
	log      *zap.Logger
	now      func() time.Time

	nextID atomic.Uint64
	// presenceMu 按用户ID分段，注册/注销与在线状态写入在同一把锁内完成
	presenceMu [registryShards]sync.Mutex
}

func NewGateway(deps GatewayDeps) *Gateway {
	g := &Gateway{
		registry: NewRegistry(),
		friends:  deps.Friends,
		messages: deps.Messages,
		presence: deps.Presence,
		limiter:  deps.Limiter,
		redis:    deps.Redis,
		log:      logger.Named("gateway"),
		now:      time.Now,
	}
	if g.limiter == nil {
		g.limiter = security.NewEventLimiter(security.DefaultEventLimiterConfig())
	}

	origins := make(map[string]bool, len(deps.AllowedOrigins))
	for _, o := range deps.AllowedOrigins {
		origins[o] = true
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(origins) == 0 || origin == "" || origins[origin]
		},
	}
	return g
}

func (g *Gateway) Registry() *Registry {
	return g.registry
}

func (g *Gateway) lockPresence(userID uint) func() {
	mu := &g.presenceMu[userID%registryShards]
	mu.Lock()
	return mu.Unlock
}

func onlineKey(userID uint) string {
	return fmt.Sprintf("user:online:%d", userID)
}

// Serve 升级已认证的 HTTP 请求并启动读写协程
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, userID uint) error {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return err
	}

	client := g.Connect(userID, conn)
	go g.writePump(client)
	go g.readPump(client)
	return nil
}

// Connect 注册连接；该用户第一个连接时标记在线并通知好友
func (g *Gateway) Connect(userID uint, conn *websocket.Conn) *Client {
	client := newClient(g.nextID.Add(1), userID, conn, sendBuffer)
	unlock := g.lockPresence(userID)
	if g.registry.Register(client) {
		g.setPresence(userID, true)
	}
	unlock()
	monitoring.IMOnlineUsers.Set(float64(g.registry.OnlineUsers()))
	g.log.Debug("WebSocket connected", zap.Uint("userId", userID), zap.Uint64("connId", client.ID))
	return client
}

// Disconnect 注销连接；最后一个连接断开时标记离线并通知好友
func (g *Gateway) Disconnect(c *Client) {
	if !c.close() {
		return
	}
	unlock := g.lockPresence(c.UserID)
	if g.registry.Unregister(c) {
		g.setPresence(c.UserID, false)
	}
	unlock()
	monitoring.IMOnlineUsers.Set(float64(g.registry.OnlineUsers()))
	g.log.Debug("WebSocket disconnected", zap.Uint("userId", c.UserID), zap.Uint64("connId", c.ID))
}

func (g *Gateway) setPresence(userID uint, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	now := g.now()
	g.persistPresence(ctx, userID, online, now)
	g.notifyFriends(ctx, userID, online, now)
}

// persistPresence 写数据库在线标记与 Redis 在线键
func (g *Gateway) persistPresence(ctx context.Context, userID uint, online bool, now time.Time) {
	if g.presence != nil {
		if err := g.presence.SetPresence(ctx, userID, online, now); err != nil {
			g.log.Error("Failed to persist presence", zap.Uint("userId", userID), zap.Error(err))
		}
	}

	if g.redis != nil {
		var err error
		if online {
			err = g.redis.Set(ctx, onlineKey(userID), "true", onlineTTL).Err()
		} else {
			err = g.redis.Del(ctx, onlineKey(userID)).Err()
		}
		if err != nil {
			g.log.Warn("Failed to update online key", zap.Uint("userId", userID), zap.Error(err))
		}
	}
}

// notifyFriends 在线状态只推送给好友，逐个定向发送
func (g *Gateway) notifyFriends(ctx context.Context, userID uint, online bool, at time.Time) {
	friendIDs, err := g.friends.FriendIDsOf(ctx, userID)
	if err != nil {
		g.log.Error("Failed to load friends for presence", zap.Uint("userId", userID), zap.Error(err))
		return
	}

	payload := g.encode(OutboundEvent{
		Type: EventPresence,
		Data: PresencePayload{UserID: userID, Online: online, LastSeen: at.UTC().Format(time.RFC3339)},
	})
	for _, id := range friendIDs {
		g.sendRaw(id, EventPresence, payload)
	}
}

func (g *Gateway) encode(evt OutboundEvent) []byte {
	b, err := json.Marshal(evt)
	if err != nil {
		g.log.Error("Failed to encode event", zap.String("type", evt.Type), zap.Error(err))
		return nil
	}
	return b
}

// sendRaw 推送给用户的所有连接
func (g *Gateway) sendRaw(userID uint, eventType string, payload []byte) int {
	if payload == nil {
		return 0
	}
	sent := 0
	for _, c := range g.registry.Clients(userID) {
		if c.trySend(payload) {
			sent++
		}
	}
	if sent > 0 {
		monitoring.IMMessageCounter.WithLabelValues(eventType, "out").Add(float64(sent))
	}
	return sent
}

// Deliver 供 REST 接口推送事件到本进程内的在线用户
func (g *Gateway) Deliver(userIDs []uint, evt OutboundEvent) {
	payload := g.encode(evt)
	for _, id := range userIDs {
		g.sendRaw(id, evt.Type, payload)
	}
}

func (g *Gateway) IsOnline(ctx context.Context, userID uint) bool {
	if g.registry.Online(userID) {
		return true
	}
	if g.redis == nil {
		return false
	}
	val, err := g.redis.Get(ctx, onlineKey(userID)).Result()
	return err == nil && val == "true"
}

// sendError 错误只回给触发事件的连接
func (g *Gateway) sendError(c *Client, eventType, code, message string, retryAfter int) {
	payload := g.encode(OutboundEvent{
		Type: EventError,
		Data: ErrorPayload{Code: code, Message: message, Event: eventType, RetryAfter: retryAfter},
	})
	if payload != nil && c.trySend(payload) {
		monitoring.IMMessageCounter.WithLabelValues(EventError, "out").Inc()
	}
}

func (g *Gateway) reject(c *Client, eventType, code, reason, message string, retryAfter int) {
	monitoring.IMRejectedEvents.WithLabelValues(eventType, reason).Inc()
	g.sendError(c, eventType, code, message, retryAfter)
}

// HandleEvent 处理一个上行帧；同一用户的事件串行执行
func (g *Gateway) HandleEvent(ctx context.Context, c *Client, raw []byte) {
	if c.Closed() {
		return
	}

	var evt InboundEvent
	if err := json.Unmarshal(raw, &evt); err != nil || evt.Type == "" {
		g.reject(c, "", ErrCodeValidation, "invalid", "malformed event", 0)
		return
	}
	monitoring.IMMessageCounter.WithLabelValues(evt.Type, "in").Inc()

	unlock := g.registry.lockUser(c.UserID)
	if unlock == nil {
		return
	}
	defer unlock()

	// 等锁期间连接可能已断开
	if c.Closed() {
		return
	}

	ctx, span := tracing.StartEventSpan(ctx, evt.Type, c.UserID)
	defer span.End()

	if !g.limiter.IsAllowed(strconv.FormatUint(uint64(c.UserID), 10)) {
		retry := g.limiter.BlockedSecondsRemaining(strconv.FormatUint(uint64(c.UserID), 10))
		g.reject(c, evt.Type, ErrCodeRateLimited, "rate_limited", "too many events", retry)
		return
	}

	switch evt.Type {
	case EventSendMessage:
		g.handleSendMessage(ctx, c, evt.Data)
	case EventTyping:
		g.handleTyping(ctx, c, evt.Data)
	case EventMarkRead:
		g.handleMarkRead(ctx, c, evt.Data)
	case EventFriendRequest:
		g.handleFriendRequest(ctx, c, evt.Data)
	case EventFriendAccepted:
		g.handleFriendAccepted(ctx, c, evt.Data)
	default:
		g.reject(c, evt.Type, ErrCodeValidation, "invalid", "unknown event type", 0)
	}
}

// gate 好友关系校验，失败时已向发送方回错误
func (g *Gateway) gate(ctx context.Context, c *Client, eventType string, peerID uint) bool {
	if peerID == 0 {
		g.reject(c, eventType, ErrCodeValidation, "invalid", "target user is required", 0)
		return false
	}
	ok, err := g.friends.CanCommunicate(ctx, c.UserID, peerID)
	if err != nil {
		g.log.Error("Friendship check failed", zap.Uint("userId", c.UserID), zap.Uint("peerId", peerID), zap.Error(err))
		g.reject(c, eventType, ErrCodeInternal, "internal", "internal error", 0)
		return false
	}
	if !ok {
		g.reject(c, eventType, ErrCodeForbidden, "forbidden", "not allowed", 0)
		return false
	}
	return true
}

func (g *Gateway) decode(c *Client, eventType string, data json.RawMessage, v interface{}) bool {
	if len(data) == 0 || json.Unmarshal(data, v) != nil {
		g.reject(c, eventType, ErrCodeValidation, "invalid", "malformed event data", 0)
		return false
	}
	return true
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var in sendMessageData
	if !g.decode(c, EventSendMessage, data, &in) {
		return
	}
	if err := in.validate(); err != nil {
		g.reject(c, EventSendMessage, ErrCodeValidation, "invalid", err.Error(), 0)
		return
	}
	if !g.gate(ctx, c, EventSendMessage, in.ReceiverID) {
		return
	}

	// 只尝试一次，失败直接返回给发送方
	msg, err := g.messages.Create(ctx, c.UserID, in.SendMessageInput)
	if err != nil {
		g.log.Error("Failed to persist message", zap.Uint("senderId", c.UserID), zap.Error(err))
		g.sendError(c, EventSendMessage, ErrCodeInternal, "message not saved", 0)
		return
	}

	g.Deliver([]uint{in.ReceiverID}, OutboundEvent{Type: EventNewMessage, Data: msg})
	g.Deliver([]uint{c.UserID}, OutboundEvent{Type: EventMessageSent, Data: map[string]interface{}{
		"message":     msg,
		"clientMsgId": in.ClientMsgID,
	}})
}

func (g *Gateway) handleTyping(ctx context.Context, c *Client, data json.RawMessage) {
	var in typingData
	if !g.decode(c, EventTyping, data, &in) || !g.gate(ctx, c, EventTyping, in.ReceiverID) {
		return
	}
	g.Deliver([]uint{in.ReceiverID}, OutboundEvent{Type: EventTyping, Data: map[string]interface{}{
		"userId":   c.UserID,
		"isTyping": in.IsTyping,
	}})
}

func (g *Gateway) handleMarkRead(ctx context.Context, c *Client, data json.RawMessage) {
	var in markReadData
	if !g.decode(c, EventMarkRead, data, &in) {
		return
	}
	if in.MessageID == "" {
		g.reject(c, EventMarkRead, ErrCodeValidation, "invalid", "messageId is required", 0)
		return
	}
	if !g.gate(ctx, c, EventMarkRead, in.ReceiverID) {
		return
	}

	// 对方发给我的、截至该消息的未读消息全部标记已读
	readAt := g.now()
	n, err := g.messages.MarkRead(ctx, c.UserID, in.ReceiverID, in.MessageID, readAt)
	if errors.Is(err, util.ErrNotFound) {
		g.reject(c, EventMarkRead, ErrCodeValidation, "invalid", "unknown message", 0)
		return
	}
	if err != nil {
		g.log.Error("Failed to mark messages read", zap.Uint("userId", c.UserID), zap.Error(err))
		g.sendError(c, EventMarkRead, ErrCodeInternal, "read state not saved", 0)
		return
	}

	g.Deliver([]uint{in.ReceiverID}, OutboundEvent{Type: EventMarkRead, Data: map[string]interface{}{
		"userId":    c.UserID,
		"messageId": in.MessageID,
		"readAt":    readAt.UTC().Format(time.RFC3339),
		"count":     n,
	}})
}

// handleFriendRequest 客户端声称的请求必须在存储中有同方向的 PENDING 记录
func (g *Gateway) handleFriendRequest(ctx context.Context, c *Client, data json.RawMessage) {
	var in friendRequestData
	if !g.decode(c, EventFriendRequest, data, &in) {
		return
	}
	if in.AddresseeID == 0 || in.AddresseeID == c.UserID {
		g.reject(c, EventFriendRequest, ErrCodeValidation, "invalid", "invalid addressee", 0)
		return
	}

	f, err := g.friends.PendingRequest(ctx, c.UserID, in.AddresseeID)
	if err != nil {
		g.log.Error("Pending request check failed", zap.Uint("userId", c.UserID), zap.Error(err))
		g.reject(c, EventFriendRequest, ErrCodeInternal, "internal", "internal error", 0)
		return
	}
	if f == nil {
		g.log.Warn("Blocked unverified friend_request event",
			zap.Uint("requesterId", c.UserID),
			zap.Uint("addresseeId", in.AddresseeID))
		g.reject(c, EventFriendRequest, ErrCodeForbidden, "forbidden", "not allowed", 0)
		return
	}

	g.Deliver([]uint{in.AddresseeID}, OutboundEvent{Type: EventFriendRequest, Data: map[string]interface{}{
		"requesterId":  c.UserID,
		"friendshipId": f.ID,
	}})
}

// handleFriendAccepted 只有双方已是好友时才转发，好友记录ID取自存储
func (g *Gateway) handleFriendAccepted(ctx context.Context, c *Client, data json.RawMessage) {
	var in friendAcceptedData
	if !g.decode(c, EventFriendAccepted, data, &in) {
		return
	}
	if in.RequesterID == 0 {
		g.reject(c, EventFriendAccepted, ErrCodeValidation, "invalid", "target user is required", 0)
		return
	}

	f, err := g.friends.AcceptedFriendship(ctx, c.UserID, in.RequesterID)
	if err != nil {
		g.log.Error("Friendship check failed", zap.Uint("userId", c.UserID), zap.Uint("peerId", in.RequesterID), zap.Error(err))
		g.reject(c, EventFriendAccepted, ErrCodeInternal, "internal", "internal error", 0)
		return
	}
	if f == nil {
		g.reject(c, EventFriendAccepted, ErrCodeForbidden, "forbidden", "not allowed", 0)
		return
	}

	g.Deliver([]uint{in.RequesterID}, OutboundEvent{Type: EventFriendAccepted, Data: map[string]interface{}{
		"addresseeId":  c.UserID,
		"friendshipId": f.ID,
	}})
}

func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.Disconnect(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		g.HandleEvent(ctx, c, message)
		cancel()
	}
}

func (g *Gateway) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 每个事件一个帧，客户端按帧解析 JSON
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// RefreshOnline 为本进程在线用户续期 Redis 在线状态
func (g *Gateway) RefreshOnline(ctx context.Context) {
	if g.redis == nil {
		return
	}
	ids := g.registry.UserIDs()
	if len(ids) == 0 {
		return
	}
	pipe := g.redis.Pipeline()
	for _, id := range ids {
		pipe.Expire(ctx, onlineKey(id), onlineTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		g.log.Warn("Failed to refresh online status", zap.Error(err))
		return
	}
	g.log.Debug("Refreshed online status", zap.Int("count", len(ids)))
}

// Run 心跳续期，ctx 取消后退出
func (g *Gateway) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.RefreshOnline(ctx)
		}
	}
}

// Stop 关闭所有连接，并把本进程上的在线用户标记为离线
func (g *Gateway) Stop() {
	g.log.Info("Gateway stopping: clearing online status and closing connections...")

	clients := g.registry.Drain()
	users := make(map[uint]struct{})
	for _, c := range clients {
		c.close()
		users[c.UserID] = struct{}{}
	}

	// 连接已全部关闭，好友收不到推送，只写存储
	now := g.now()
	for id := range users {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		unlock := g.lockPresence(id)
		g.persistPresence(ctx, id, false, now)
		unlock()
		cancel()
	}

	monitoring.IMOnlineUsers.Set(0) // 停机时清空指标
	g.log.Info("Gateway stopped", zap.Int("closedConnections", len(clients)), zap.Int("users", len(users)))
}
