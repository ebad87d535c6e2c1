package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"planora_backend/internal/config"
	"planora_backend/internal/middleware"
	"planora_backend/internal/model"
	"planora_backend/internal/service"
	"planora_backend/internal/util"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var testJWT = config.JWTConfig{
	AccessSecret:     "test-access-secret-0123456789abcdef",
	RefreshSecret:    "test-refresh-secret-0123456789abcdef",
	AccessTTLMinutes: 15,
	RefreshTTLDays:   7,
}

// friendPairs 固定的好友关系，键为排序后的用户对
type friendPairs struct {
	pairs map[[2]uint]*model.Friendship
}

func newFriendPairs(pairs ...[2]uint) *friendPairs {
	f := &friendPairs{pairs: make(map[[2]uint]*model.Friendship)}
	for i, p := range pairs {
		f.pairs[orderPair(p[0], p[1])] = &model.Friendship{
			ID:          uint(i + 1),
			RequesterID: p[0],
			AddresseeID: p[1],
			Status:      model.FriendshipAccepted,
		}
	}
	return f
}

func orderPair(a, b uint) [2]uint {
	if a > b {
		a, b = b, a
	}
	return [2]uint{a, b}
}

func (f *friendPairs) CanCommunicate(ctx context.Context, a, b uint) (bool, error) {
	rel, err := f.AcceptedFriendship(ctx, a, b)
	return rel != nil, err
}

func (f *friendPairs) AcceptedFriendship(_ context.Context, a, b uint) (*model.Friendship, error) {
	return f.pairs[orderPair(a, b)], nil
}

func (f *friendPairs) PendingRequest(context.Context, uint, uint) (*model.Friendship, error) {
	return nil, nil
}

func (f *friendPairs) FriendIDsOf(_ context.Context, userID uint) ([]uint, error) {
	var ids []uint
	for pair := range f.pairs {
		switch userID {
		case pair[0]:
			ids = append(ids, pair[1])
		case pair[1]:
			ids = append(ids, pair[0])
		}
	}
	return ids, nil
}

type memoryMessages struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (m *memoryMessages) Create(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = fmt.Sprintf("msg-%d", len(m.msgs)+1)
	msg.CreatedAt = time.Now()
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memoryMessages) History(context.Context, uint, uint, string, int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Message(nil), m.msgs...), nil
}

func (m *memoryMessages) MarkRead(context.Context, uint, uint, string, time.Time) (int64, error) {
	return 0, nil
}

type wsFixture struct {
	server  *httptest.Server
	gateway *service.Gateway
	tokens  *service.TokenService
}

func newWSFixture(t *testing.T, friends *friendPairs) *wsFixture {
	t.Helper()
	tokens, err := service.NewTokenService(nil, nil, testJWT)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	gateway := service.NewGateway(service.GatewayDeps{
		Friends:  friends,
		Messages: service.NewMessageService(&memoryMessages{}, friends),
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/ws", NewWSController(gateway, tokens).Connect)

	f := &wsFixture{server: httptest.NewServer(router), gateway: gateway, tokens: tokens}
	t.Cleanup(func() {
		gateway.Stop()
		f.server.Close()
	})
	return f
}

func accessToken(t *testing.T, userID uint, issuedAt time.Time) string {
	t.Helper()
	user := &model.User{BaseModel: model.BaseModel{ID: userID}, Role: model.RoleUser, Email: fmt.Sprintf("u%d@example.com", userID)}
	token, _, err := util.GenerateAccessJWT(user, testJWT.AccessSecret, issuedAt, testJWT.AccessTTL())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (f *wsFixture) url(token string) string {
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (f *wsFixture) dial(t *testing.T, userID uint) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url(accessToken(t, userID, time.Now())), nil)
	if err != nil {
		t.Fatalf("dial as %d: %v", userID, err)
	}
	t.Cleanup(func() { conn.Close() })

	// 握手返回后服务端才注册连接
	deadline := time.Now().Add(2 * time.Second)
	for !f.gateway.Registry().Online(userID) {
		if time.Now().After(deadline) {
			t.Fatalf("user %d was never registered", userID)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

// readUntil 读取帧直到出现指定类型的事件
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var evt struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("waiting for %s: %v", eventType, err)
		}
		if evt.Type == eventType {
			return evt.Data
		}
	}
}

func TestWSConnectRejectsBadTokens(t *testing.T) {
	f := newWSFixture(t, newFriendPairs())

	refresh, _, err := util.GenerateRefreshJWT(1, testJWT.RefreshSecret, time.Now(), testJWT.RefreshTTL())
	if err != nil {
		t.Fatalf("sign refresh token: %v", err)
	}

	cases := []struct {
		name  string
		token string
		code  string
	}{
		{name: "missing", token: "", code: util.CodeUnauthorized},
		{name: "garbage", token: "not-a-jwt", code: util.CodeUnauthorized},
		{name: "refresh token", token: refresh, code: util.CodeUnauthorized},
		{name: "expired", token: accessToken(t, 1, time.Now().Add(-time.Hour)), code: util.CodeTokenExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(f.url(tc.token), nil)
			if err == nil {
				conn.Close()
				t.Fatal("handshake should fail")
			}
			if resp == nil {
				t.Fatalf("expected an HTTP response, got %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401 got %d", resp.StatusCode)
			}
			raw, _ := io.ReadAll(resp.Body)
			var body util.Response
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("decode body %q: %v", raw, err)
			}
			if body.ErrorCode != tc.code {
				t.Fatalf("expected %s got %+v", tc.code, body)
			}
		})
	}

	if n := f.gateway.Registry().OnlineUsers(); n != 0 {
		t.Fatalf("rejected handshakes must not register connections, got %d", n)
	}
}

func TestWSConnectRoutesMessages(t *testing.T) {
	f := newWSFixture(t, newFriendPairs([2]uint{1, 2}))

	sender := f.dial(t, 1)
	receiver := f.dial(t, 2)

	err := sender.WriteJSON(map[string]interface{}{
		"type": service.EventSendMessage,
		"data": map[string]interface{}{"receiverId": 2, "content": "hello", "clientMsgId": "c-1"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	var msg model.Message
	if err := json.Unmarshal(readUntil(t, receiver, service.EventNewMessage), &msg); err != nil {
		t.Fatalf("decode new_message: %v", err)
	}
	if msg.SenderID != 1 || msg.Content != "hello" {
		t.Fatalf("unexpected message %+v", msg)
	}

	var ack struct {
		ClientMsgID string `json:"clientMsgId"`
	}
	if err := json.Unmarshal(readUntil(t, sender, service.EventMessageSent), &ack); err != nil || ack.ClientMsgID != "c-1" {
		t.Fatalf("expected message_sent ack, got %+v %v", ack, err)
	}

	// 非好友的消息只回错误给发送方
	err = sender.WriteJSON(map[string]interface{}{
		"type": service.EventSendMessage,
		"data": map[string]interface{}{"receiverId": 3, "content": "stranger"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	var p service.ErrorPayload
	if err := json.Unmarshal(readUntil(t, sender, service.EventError), &p); err != nil || p.Code != service.ErrCodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %+v %v", p, err)
	}
}

func TestListFriendsReportsLivePresence(t *testing.T) {
	friends := newFriendPairs([2]uint{1, 2}, [2]uint{1, 3})
	f := newWSFixture(t, friends)
	f.gateway.Connect(2, nil)

	store := listOnlyFriendStore{friends: []model.User{
		{BaseModel: model.BaseModel{ID: 2}, Name: "Online"},
		{BaseModel: model.BaseModel{ID: 3}, Name: "Stale", IsOnline: true},
	}}
	ctrl := NewFriendshipController(service.NewFriendshipService(store, nil, nil), f.gateway)

	router := gin.New()
	router.GET("/api/friends", middleware.AuthMiddleware(f.tokens), ctrl.ListFriends)

	req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, 1, time.Now()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data []model.User `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	online := map[uint]bool{}
	for _, u := range body.Data {
		online[u.ID] = u.IsOnline
	}
	if !online[2] || online[3] {
		t.Fatalf("expected only user 2 online, got %v", online)
	}
}

// listOnlyFriendStore 只实现好友列表查询
type listOnlyFriendStore struct {
	service.FriendshipStore
	friends []model.User
}

func (s listOnlyFriendStore) ListFriends(context.Context, uint, string) ([]model.User, error) {
	return append([]model.User(nil), s.friends...), nil
}
