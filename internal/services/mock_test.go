package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/revenac/apiserver/internal/storage"
	"github.com/revenac/apiserver/internal/store"
	"github.com/revenac/apiserver/types"
)

// memLedger mirrors the transactional rules of store.LedgerRepository behind
// one mutex.
type memLedger struct {
	mu          sync.Mutex
	users       map[int]*types.User
	codes       map[string]*types.EarnCode
	rewards     map[int]*types.Reward
	redemptions []types.Redemption
	failWith    error
}

func newMemLedger() *memLedger {
	return &memLedger{
		users:   map[int]*types.User{},
		codes:   map[string]*types.EarnCode{},
		rewards: map[int]*types.Reward{},
	}
}

func (m *memLedger) addUser(id, balance int) {
	m.users[id] = &types.User{ID: id, Name: "user", Role: types.RoleUser, TokenBalance: balance}
}

func (m *memLedger) addCode(code string, value int) {
	m.codes[code] = &types.EarnCode{Code: code, TokenValue: value, ItemType: types.ItemPlasticBottle}
}

func (m *memLedger) addReward(id, cost, stock int, active bool) {
	m.rewards[id] = &types.Reward{ID: id, Title: "reward", TokenCost: cost, Stock: stock, Active: active}
}

func (m *memLedger) ClaimCode(ctx context.Context, userID int, code string, carbonPerItem float64) (types.ClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return types.ClaimResult{}, m.failWith
	}

	c, ok := m.codes[code]
	if !ok {
		return types.ClaimResult{}, store.ErrNotFound
	}
	if c.Consumed {
		return types.ClaimResult{}, store.ErrAlreadyConsumed
	}
	u, ok := m.users[userID]
	if !ok {
		return types.ClaimResult{}, store.ErrUserNotFound
	}

	now := time.Now()
	c.Consumed = true
	c.ConsumedAt = &now
	c.UserID = &userID
	u.TokenBalance += c.TokenValue
	u.BottleCount++
	u.CarbonSaved += carbonPerItem
	return types.ClaimResult{Code: code, TokensEarned: c.TokenValue, NewBalance: u.TokenBalance}, nil
}

func (m *memLedger) RedeemReward(ctx context.Context, userID, rewardID int) (types.RedemptionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return types.RedemptionResult{}, m.failWith
	}

	u, ok := m.users[userID]
	if !ok {
		return types.RedemptionResult{}, store.ErrNotFound
	}
	r, ok := m.rewards[rewardID]
	if !ok {
		return types.RedemptionResult{}, store.ErrNotFound
	}
	if u.TokenBalance < r.TokenCost {
		return types.RedemptionResult{}, store.ErrInsufficientBalance
	}
	if !r.Active || r.Stock <= 0 {
		return types.RedemptionResult{}, store.ErrRewardUnavailable
	}

	u.TokenBalance -= r.TokenCost
	r.Stock--
	redemption := types.Redemption{
		ID:        int64(len(m.redemptions) + 1),
		UserID:    userID,
		RewardID:  rewardID,
		TokenCost: r.TokenCost,
		Status:    types.RedemptionPending,
		CreatedAt: time.Now(),
	}
	m.redemptions = append(m.redemptions, redemption)
	return types.RedemptionResult{Redemption: redemption, NewBalance: u.TokenBalance}, nil
}

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, published{channel: channel, data: data, attrs: attrs})
	return "1", nil
}

func (p *fakePublisher) count(channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, msg := range p.messages {
		if msg.channel == channel {
			n++
		}
	}
	return n
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

type fakeEarnCodeRepo struct {
	created   []types.EarnCode
	conflicts int
	err       error
}

func (f *fakeEarnCodeRepo) Create(ctx context.Context, code types.EarnCode) (types.EarnCode, error) {
	if f.err != nil {
		return types.EarnCode{}, f.err
	}
	if f.conflicts > 0 {
		f.conflicts--
		return types.EarnCode{}, store.ErrConflict
	}
	code.ID = int64(len(f.created) + 1)
	code.CreatedAt = time.Now()
	f.created = append(f.created, code)
	return code, nil
}

type fakeRewardRepo struct {
	rewards   map[int]types.Reward
	nextID    int
	deleteErr error
}

func newFakeRewardRepo() *fakeRewardRepo {
	return &fakeRewardRepo{rewards: map[int]types.Reward{}, nextID: 1}
}

func (f *fakeRewardRepo) List(ctx context.Context, activeOnly bool) ([]types.Reward, error) {
	out := make([]types.Reward, 0, len(f.rewards))
	for id := 1; id < f.nextID; id++ {
		r, ok := f.rewards[id]
		if !ok || (activeOnly && !r.Active) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRewardRepo) Get(ctx context.Context, id int) (types.Reward, error) {
	r, ok := f.rewards[id]
	if !ok {
		return types.Reward{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeRewardRepo) Create(ctx context.Context, reward types.Reward) (types.Reward, error) {
	reward.ID = f.nextID
	f.nextID++
	f.rewards[reward.ID] = reward
	return reward, nil
}

func (f *fakeRewardRepo) Update(ctx context.Context, reward types.Reward) (types.Reward, error) {
	current, ok := f.rewards[reward.ID]
	if !ok {
		return types.Reward{}, store.ErrNotFound
	}
	reward.ImageKey = current.ImageKey
	f.rewards[reward.ID] = reward
	return reward, nil
}

func (f *fakeRewardRepo) SetImageKey(ctx context.Context, id int, key string) error {
	r, ok := f.rewards[id]
	if !ok {
		return store.ErrNotFound
	}
	r.ImageKey = key
	f.rewards[id] = r
	return nil
}

func (f *fakeRewardRepo) Delete(ctx context.Context, id int) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rewards[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.rewards, id)
	return nil
}

type memImages struct {
	objects map[string][]byte
}

func newMemImages() *memImages {
	return &memImages{objects: map[string][]byte{}}
}

func (m *memImages) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memImages) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memImages) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type fakeRanking struct {
	entries []types.LeaderboardEntry
	calls   int
	err     error
	onTop   func()
}

func (f *fakeRanking) Top(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	f.calls++
	if f.onTop != nil {
		f.onTop()
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.entries) > limit {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

// fakeLeaderboardStore keeps one cached ranking per epoch, like
// cache.LeaderboardCache.
type fakeLeaderboardStore struct {
	byEpoch map[int64][]types.LeaderboardEntry
	epoch   int64
	getErr  error
	sets    int
}

func (f *fakeLeaderboardStore) Get(ctx context.Context) ([]types.LeaderboardEntry, int64, bool, error) {
	if f.getErr != nil {
		return nil, 0, false, f.getErr
	}
	entries, ok := f.byEpoch[f.epoch]
	return entries, f.epoch, ok, nil
}

func (f *fakeLeaderboardStore) Set(ctx context.Context, epoch int64, entries []types.LeaderboardEntry) error {
	if f.byEpoch == nil {
		f.byEpoch = make(map[int64][]types.LeaderboardEntry)
	}
	f.byEpoch[epoch] = entries
	f.sets++
	return nil
}

func (f *fakeLeaderboardStore) Invalidate(ctx context.Context) error {
	f.epoch++
	return nil
}

func (f *fakeLeaderboardStore) current() []types.LeaderboardEntry {
	return f.byEpoch[f.epoch]
}

type fakeUserRepo struct {
	users map[int]types.User
	err   error
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	if f.err != nil {
		return types.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, u := range f.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = len(f.users) + 1
	f.users[user.ID] = user
	return user, nil
}

var errDriver = errors.New("driver: connection reset")
