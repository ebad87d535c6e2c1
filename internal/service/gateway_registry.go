package service

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

const registryShards = 32

// Client 一个 WebSocket 连接，同一用户可以有多个
type Client struct {
	ID     uint64
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(id uint64, userID uint, conn *websocket.Conn, buffer int) *Client {
	return &Client{ID: id, UserID: userID, Conn: conn, Send: make(chan []byte, buffer)}
}

// trySend 非阻塞写入发送队列，队列满或已关闭时丢弃
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// close 关闭发送队列，writePump 随后发送关闭帧并退出
func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.Send)
	return true
}

func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// room 单个用户的全部连接；eventMu 串行化该用户的事件处理
type room struct {
	mu      sync.RWMutex
	conns   map[uint64]*Client
	eventMu sync.Mutex
}

type registryShard struct {
	mu    sync.RWMutex
	rooms map[uint]*room
}

// Registry 进程内的用户 -> 连接表，按用户ID分片加锁
type Registry struct {
	shards [registryShards]*registryShard
	users  atomic.Int64
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{rooms: make(map[uint]*room)}
	}
	return r
}

func (r *Registry) shard(userID uint) *registryShard {
	return r.shards[userID%registryShards]
}

// Register 加入用户房间，返回是否为该用户的第一个连接
func (r *Registry) Register(c *Client) bool {
	s := r.shard(c.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[c.UserID]
	if !ok {
		rm = &room{conns: make(map[uint64]*Client)}
		s.rooms[c.UserID] = rm
		r.users.Add(1)
	}
	rm.mu.Lock()
	rm.conns[c.ID] = c
	rm.mu.Unlock()
	return !ok
}

// Unregister 只移除这一个连接ID，返回是否为该用户的最后一个连接
func (r *Registry) Unregister(c *Client) bool {
	s := r.shard(c.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[c.UserID]
	if !ok {
		return false
	}
	rm.mu.Lock()
	_, existed := rm.conns[c.ID]
	delete(rm.conns, c.ID)
	empty := len(rm.conns) == 0
	rm.mu.Unlock()

	if empty {
		delete(s.rooms, c.UserID)
		r.users.Add(-1)
	}
	return existed && empty
}

func (r *Registry) room(userID uint) *room {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[userID]
}

// Clients 用户当前的全部连接快照
func (r *Registry) Clients(userID uint) []*Client {
	rm := r.room(userID)
	if rm == nil {
		return nil
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Client, 0, len(rm.conns))
	for _, c := range rm.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Online(userID uint) bool {
	return r.room(userID) != nil
}

func (r *Registry) OnlineUsers() int {
	return int(r.users.Load())
}

func (r *Registry) UserIDs() []uint {
	var ids []uint
	for _, s := range r.shards {
		s.mu.RLock()
		for id := range s.rooms {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	return ids
}

// Drain 清空注册表并返回所有连接，用于停机
func (r *Registry) Drain() []*Client {
	var all []*Client
	for _, s := range r.shards {
		s.mu.Lock()
		for id, rm := range s.rooms {
			rm.mu.Lock()
			for _, c := range rm.conns {
				all = append(all, c)
			}
			rm.mu.Unlock()
			delete(s.rooms, id)
		}
		s.mu.Unlock()
	}
	r.users.Store(0)
	return all
}

// lockUser 串行化同一用户的事件，返回解锁函数；用户已无连接时返回 nil
func (r *Registry) lockUser(userID uint) func() {
	rm := r.room(userID)
	if rm == nil {
		return nil
	}
	rm.eventMu.Lock()
	return rm.eventMu.Unlock
}
