package service

import (
	"context"
	"fmt"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"sort"
	"strings"
	"sync"
	"time"
)

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testNow}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type inMemoryUserStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*model.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[uint]*model.User)}
}

// seed 直接插入用户，返回其ID
func (s *inMemoryUserStore) seed(name string) uint {
	u := &model.User{Name: name, Email: strings.ToLower(name) + "@example.com", Role: model.RoleUser}
	if err := s.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u.ID
}

func (s *inMemoryUserStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return util.ErrEmailRegistered
		}
	}
	s.nextID++
	user.ID = s.nextID
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id uint) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, util.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == strings.ToLower(email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, util.ErrUserNotFound
}

func (s *inMemoryUserStore) Exists(_ context.Context, id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *inMemoryUserStore) Update(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return util.ErrUserNotFound
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *inMemoryUserStore) UpdatePassword(_ context.Context, id uint, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return util.ErrUserNotFound
	}
	u.Password = hash
	return nil
}

func (s *inMemoryUserStore) TouchLogin(_ context.Context, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (s *inMemoryUserStore) SetPresence(_ context.Context, id uint, online bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsOnline = online
		u.LastSeen = &lastSeen
	}
	return nil
}

func (s *inMemoryUserStore) List(_ context.Context, query string, limit, offset int) ([]model.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, u := range s.users {
		if query == "" || strings.Contains(u.Name, query) || strings.Contains(u.Email, query) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *inMemoryUserStore) DeleteCascade(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return util.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

type inMemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken
}

func newInMemoryTokenStore() *inMemoryTokenStore {
	return &inMemoryTokenStore{tokens: make(map[string]model.RefreshToken)}
}

func (s *inMemoryTokenStore) Save(_ context.Context, token *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.TokenHash] = *token
	return nil
}

func (s *inMemoryTokenStore) FindByHash(_ context.Context, hash string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok {
		return nil, util.ErrRefreshNotFound
	}
	return &t, nil
}

func (s *inMemoryTokenStore) DeleteByHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, hash)
	return nil
}

func (s *inMemoryTokenStore) DeleteAllForUser(_ context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, hash)
		}
	}
	return nil
}

func (s *inMemoryTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for hash, t := range s.tokens {
		if t.Expired(now) {
			delete(s.tokens, hash)
			n++
		}
	}
	return n, nil
}

func (s *inMemoryTokenStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

type inMemoryFriendshipStore struct {
	mu      sync.Mutex
	nextID  uint
	records map[uint]*model.Friendship
	users   *inMemoryUserStore
}

func newInMemoryFriendshipStore(users *inMemoryUserStore) *inMemoryFriendshipStore {
	return &inMemoryFriendshipStore{records: make(map[uint]*model.Friendship), users: users}
}

func (s *inMemoryFriendshipStore) Create(_ context.Context, f *model.Friendship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.PairKey = model.PairKeyOf(f.RequesterID, f.AddresseeID)
	for _, existing := range s.records {
		if existing.PairKey == f.PairKey {
			return util.ErrConflict
		}
	}
	s.nextID++
	f.ID = s.nextID
	copied := *f
	s.records[f.ID] = &copied
	return nil
}

func (s *inMemoryFriendshipStore) FindByID(_ context.Context, id uint) (*model.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.records[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (s *inMemoryFriendshipStore) FindByPair(_ context.Context, a, b uint) (*model.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.PairKeyOf(a, b)
	for _, f := range s.records {
		if f.PairKey == key {
			copied := *f
			return &copied, nil
		}
	}
	return nil, util.ErrNotFound
}

func (s *inMemoryFriendshipStore) Save(_ context.Context, f *model.Friendship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[f.ID]; !ok {
		return util.ErrNotFound
	}
	copied := *f
	s.records[f.ID] = &copied
	return nil
}

func (s *inMemoryFriendshipStore) Delete(_ context.Context, f *model.Friendship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, f.ID)
	return nil
}

func (s *inMemoryFriendshipStore) FriendIDsCached(_ context.Context, userID uint) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint
	for _, f := range s.records {
		if f.Status == model.FriendshipAccepted && f.Involves(userID) {
			ids = append(ids, f.Counterparty(userID))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *inMemoryFriendshipStore) ListFriends(ctx context.Context, userID uint, _ string) ([]model.User, error) {
	ids, _ := s.FriendIDsCached(ctx, userID)
	var out []model.User
	for _, id := range ids {
		u, err := s.users.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s *inMemoryFriendshipStore) ListRequests(_ context.Context, userID uint, _, _ int) ([]model.Friendship, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Friendship
	for _, f := range s.records {
		if f.Involves(userID) && (f.Status == model.FriendshipPending || f.Status == model.FriendshipRejected) {
			out = append(out, *f)
		}
	}
	return out, int64(len(out)), nil
}

func (s *inMemoryFriendshipStore) ListPending(_ context.Context, userID uint) ([]model.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Friendship
	for _, f := range s.records {
		if f.AddresseeID == userID && f.Status == model.FriendshipPending {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *inMemoryFriendshipStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type shareKey struct {
	kind model.ResourceKind
	id   uint
	user uint
}

type inMemoryShareStore struct {
	mu     sync.Mutex
	grants map[shareKey]model.ShareGrant
	// shared 记录每个资源的 is_shared 标记
	shared map[string]bool
}

func newInMemoryShareStore() *inMemoryShareStore {
	return &inMemoryShareStore{grants: make(map[shareKey]model.ShareGrant), shared: make(map[string]bool)}
}

func resourceKey(kind model.ResourceKind, id uint) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func (s *inMemoryShareStore) PermissionFor(_ context.Context, kind model.ResourceKind, resourceID, userID uint) (model.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[shareKey{kind, resourceID, userID}]
	if !ok {
		return model.PermissionNone, nil
	}
	return g.Permission, nil
}

func (s *inMemoryShareStore) Upsert(_ context.Context, grant *model.ShareGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[shareKey{grant.ResourceKind, grant.ResourceID, grant.UserID}] = *grant
	s.shared[resourceKey(grant.ResourceKind, grant.ResourceID)] = true
	return nil
}

func (s *inMemoryShareStore) Remove(_ context.Context, kind model.ResourceKind, resourceID, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := shareKey{kind, resourceID, userID}
	if _, ok := s.grants[key]; !ok {
		return util.ErrNotFound
	}
	delete(s.grants, key)
	remaining := 0
	for k := range s.grants {
		if k.kind == kind && k.id == resourceID {
			remaining++
		}
	}
	s.shared[resourceKey(kind, resourceID)] = remaining > 0
	return nil
}

func (s *inMemoryShareStore) List(_ context.Context, kind model.ResourceKind, resourceID uint) ([]model.ShareGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ShareGrant
	for k, g := range s.grants {
		if k.kind == kind && k.id == resourceID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *inMemoryShareStore) isShared(kind model.ResourceKind, id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shared[resourceKey(kind, id)]
}

type inMemoryNoteStore struct {
	mu     sync.Mutex
	nextID uint
	notes  map[uint]*model.Note
	shares *inMemoryShareStore
}

func newInMemoryNoteStore(shares *inMemoryShareStore) *inMemoryNoteStore {
	return &inMemoryNoteStore{notes: make(map[uint]*model.Note), shares: shares}
}

func (s *inMemoryNoteStore) Create(_ context.Context, note *model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	note.ID = s.nextID
	copied := *note
	s.notes[note.ID] = &copied
	return nil
}

func (s *inMemoryNoteStore) FindByID(_ context.Context, id uint) (*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	copied := *n
	copied.IsShared = s.shares.isShared(model.KindNote, id)
	return &copied, nil
}

func (s *inMemoryNoteStore) ListByOwner(_ context.Context, userID uint, _, _ int) ([]model.Note, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Note
	for _, n := range s.notes {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (s *inMemoryNoteStore) ListSharedWith(ctx context.Context, userID uint, _, _ int) ([]model.Note, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Note
	for _, n := range s.notes {
		if perm, _ := s.shares.PermissionFor(ctx, model.KindNote, n.ID, userID); perm != model.PermissionNone {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (s *inMemoryNoteStore) Update(_ context.Context, note *model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[note.ID]
	if !ok {
		return util.ErrNotFound
	}
	n.Title = note.Title
	n.Content = note.Content
	return nil
}

func (s *inMemoryNoteStore) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, id)
	return nil
}

type inMemoryMessageStore struct {
	mu       sync.Mutex
	messages []model.Message
	failNext error
}

func (s *inMemoryMessageStore) Create(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	msg.ID = fmt.Sprintf("msg-%d", len(s.messages)+1)
	msg.CreatedAt = testNow
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *inMemoryMessageStore) History(_ context.Context, a, b uint, _ string, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *inMemoryMessageStore) MarkRead(_ context.Context, receiverID, senderID uint, upToID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	anchor := -1
	for i, m := range s.messages {
		if m.ID == upToID && m.SenderID == senderID && m.ReceiverID == receiverID {
			anchor = i
		}
	}
	if anchor < 0 {
		return 0, util.ErrNotFound
	}
	var n int64
	for i := 0; i <= anchor; i++ {
		m := &s.messages[i]
		if m.SenderID == senderID && m.ReceiverID == receiverID && m.ReadAt == nil {
			readAt := at
			m.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (s *inMemoryMessageStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ReadAt != nil {
			n++
		}
	}
	return n
}

func (s *inMemoryMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) kinds() []NotificationKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]NotificationKind, 0, len(p.sent))
	for _, n := range p.sent {
		out = append(out, n.Kind)
	}
	return out
}
