package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
)

// Memory implements Store with mutex-guarded maps. It backs local development
// without a database and every engine test. One lock serializes all mutations,
// which gives the same lost-update protection the Postgres implementation gets
// from row locking.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	games    map[int64]*models.Game
	players  map[int64][]*models.GamePlayer   // gameID -> roster
	payments map[int64]*models.GamePayment    // paymentID -> payment
	byKey    map[string]int64                 // idempotency key -> paymentID
	refunds  map[int64][]*models.Refund       // paymentID -> refunds
	waitlist map[int64][]*models.GameWaitlist // gameID -> FIFO queue
	events   map[string]*models.PaymentEvent  // eventID -> receipt
	blocks   map[int64]map[int64]bool         // userID -> blocked set
}

func NewMemory() *Memory {
	return &Memory{
		games:    make(map[int64]*models.Game),
		players:  make(map[int64][]*models.GamePlayer),
		payments: make(map[int64]*models.GamePayment),
		byKey:    make(map[string]int64),
		refunds:  make(map[int64][]*models.Refund),
		waitlist: make(map[int64][]*models.GameWaitlist),
		events:   make(map[string]*models.PaymentEvent),
		blocks:   make(map[int64]map[int64]bool),
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func cloneGame(g *models.Game) *models.Game {
	c := *g
	return &c
}

func clonePayment(p *models.GamePayment) *models.GamePayment {
	c := *p
	return &c
}

func (m *Memory) CreateGame(ctx context.Context, g *models.Game) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	created := cloneGame(g)
	created.ID = m.id()
	created.CurrentPlayers = 1
	created.WaitlistCount = 0
	created.Status = models.GameStatusOpen
	created.CreatedAt = now
	created.UpdatedAt = now
	m.games[created.ID] = created

	m.players[created.ID] = []*models.GamePlayer{{
		ID:       m.id(),
		GameID:   created.ID,
		UserID:   g.HostID,
		IsHost:   true,
		JoinedAt: now,
	}}
	return cloneGame(created), nil
}

func (m *Memory) GetGameByID(ctx context.Context, gameID int64) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGame(g), nil
}

func (m *Memory) SearchOpenGames(ctx context.Context, callerID int64, sport, skillLevel string) ([]*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blocked := m.blocks[callerID]
	var out []*models.Game
	for _, g := range m.games {
		if g.Status != models.GameStatusOpen {
			continue
		}
		if sport != "" && g.Sport != sport {
			continue
		}
		if skillLevel != "" && g.SkillLevel != skillLevel {
			continue
		}
		if blocked[g.HostID] {
			continue
		}
		out = append(out, cloneGame(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) ListGamesStartingBetween(ctx context.Context, from, to time.Time, statuses []string) ([]*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	match := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		match[s] = true
	}

	var out []*models.Game
	for _, g := range m.games {
		if !match[g.Status] {
			continue
		}
		if g.StartTime.Before(from) || g.StartTime.After(to) {
			continue
		}
		out = append(out, cloneGame(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) UpdateGameStatus(ctx context.Context, gameID int64, from []string, to string) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, f := range from {
		if g.Status == f {
			g.Status = to
			g.UpdatedAt = time.Now()
			return cloneGame(g), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetPlayersByGameID(ctx context.Context, gameID int64) ([]*models.GamePlayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.GamePlayer
	for _, p := range m.players[gameID] {
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

func (m *Memory) AddPlayer(ctx context.Context, gameID, userID int64) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addPlayerLocked(gameID, userID)
}

func (m *Memory) addPlayerLocked(gameID, userID int64) (*models.Game, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	if g.Status == models.GameStatusCancelled || g.Status == models.GameStatusCompleted {
		return nil, ErrGameCancelled
	}
	if g.CurrentPlayers >= g.MaxPlayers {
		return nil, ErrGameFull
	}
	for _, p := range m.players[gameID] {
		if p.UserID == userID {
			return nil, ErrAlreadyJoined
		}
	}

	m.players[gameID] = append(m.players[gameID], &models.GamePlayer{
		ID:       m.id(),
		GameID:   gameID,
		UserID:   userID,
		JoinedAt: time.Now(),
	})
	g.CurrentPlayers++
	g.Status = nextStatus(g.Status, g.CurrentPlayers, g.MinPlayers, g.MaxPlayers)
	g.UpdatedAt = time.Now()
	return cloneGame(g), nil
}

func (m *Memory) RemovePlayer(ctx context.Context, gameID, userID int64) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	roster := m.players[gameID]
	for i, p := range roster {
		if p.UserID == userID {
			m.players[gameID] = append(roster[:i], roster[i+1:]...)
			g.CurrentPlayers--
			g.UpdatedAt = time.Now()
			return cloneGame(g), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CreatePayment(ctx context.Context, p *models.GamePayment) (*models.GamePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byKey[p.IdempotencyKey]; exists {
		return nil, ErrDuplicateKey
	}

	now := time.Now()
	created := clonePayment(p)
	created.ID = m.id()
	created.CreatedAt = now
	created.UpdatedAt = now
	m.payments[created.ID] = created
	m.byKey[created.IdempotencyKey] = created.ID
	return clonePayment(created), nil
}

func (m *Memory) GetPaymentByID(ctx context.Context, id int64) (*models.GamePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *Memory) GetPaymentByIdempotencyKey(ctx context.Context, key string) (*models.GamePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePayment(m.payments[id]), nil
}

func (m *Memory) GetPaymentByProviderRef(ctx context.Context, providerRef string) (*models.GamePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.payments {
		if p.ProviderRef == providerRef {
			return clonePayment(p), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetPaymentForUser(ctx context.Context, gameID, userID int64) (*models.GamePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.GamePayment
	for _, p := range m.payments {
		if p.GameID != gameID || p.UserID != userID || p.Status == models.PaymentStatusRefunded {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) || (p.CreatedAt.Equal(latest.CreatedAt) && p.ID > latest.ID) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return clonePayment(latest), nil
}

func (m *Memory) UpdatePaymentStatus(ctx context.Context, id int64, from []string, to string) (*models.GamePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, f := range from {
		if p.Status == f {
			p.Status = to
			p.UpdatedAt = time.Now()
			return clonePayment(p), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListPaymentsByGameAndStatus(ctx context.Context, gameID int64, status string) ([]*models.GamePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.GamePayment
	for _, p := range m.payments {
		if p.GameID == gameID && p.Status == status {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ExpirePendingPayments(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, p := range m.payments {
		if p.Status == models.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = models.PaymentStatusFailed
			p.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateRefund(ctx context.Context, r *models.Refund) (*models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := *r
	created.ID = m.id()
	created.CreatedAt = time.Now()
	m.refunds[r.GamePaymentID] = append(m.refunds[r.GamePaymentID], &created)
	out := created
	return &out, nil
}

func (m *Memory) ListRefundsByPaymentID(ctx context.Context, gamePaymentID int64) ([]*models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Refund
	for _, r := range m.refunds[gamePaymentID] {
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (m *Memory) EnqueueWaitlist(ctx context.Context, gameID, userID int64) (*models.GameWaitlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, w := range m.waitlist[gameID] {
		if w.UserID == userID {
			return nil, ErrAlreadyJoined
		}
	}

	entry := &models.GameWaitlist{
		ID:       m.id(),
		GameID:   gameID,
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	m.waitlist[gameID] = append(m.waitlist[gameID], entry)
	g.WaitlistCount++
	g.UpdatedAt = time.Now()
	out := *entry
	return &out, nil
}

func (m *Memory) RemoveFromWaitlist(ctx context.Context, gameID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeWaitlistLocked(gameID, userID)
}

func (m *Memory) removeWaitlistLocked(gameID, userID int64) error {
	g, ok := m.games[gameID]
	if !ok {
		return ErrNotFound
	}
	queue := m.waitlist[gameID]
	for i, w := range queue {
		if w.UserID == userID {
			m.waitlist[gameID] = append(queue[:i], queue[i+1:]...)
			if g.WaitlistCount > 0 {
				g.WaitlistCount--
			}
			g.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) PeekWaitlist(ctx context.Context, gameID int64) (*models.GameWaitlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.waitlist[gameID]
	if len(queue) == 0 {
		return nil, ErrNotFound
	}
	out := *queue[0]
	return &out, nil
}

func (m *Memory) SetWaitlistToken(ctx context.Context, gameID, userID int64, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.waitlist[gameID] {
		if w.UserID == userID {
			w.TokenID = tokenID
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) PromoteFromWaitlist(ctx context.Context, gameID, userID int64, tokenID string) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entry *models.GameWaitlist
	for _, w := range m.waitlist[gameID] {
		if w.UserID == userID {
			entry = w
			break
		}
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	if entry.TokenID == "" || entry.TokenID != tokenID {
		return nil, ErrTokenMismatch
	}

	game, err := m.addPlayerLocked(gameID, userID)
	if err != nil {
		return nil, err
	}
	if err := m.removeWaitlistLocked(gameID, userID); err != nil {
		return nil, err
	}
	game.WaitlistCount = m.games[gameID].WaitlistCount
	return game, nil
}

func (m *Memory) RecordPaymentEvent(ctx context.Context, e *models.PaymentEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.events[e.EventID]; exists {
		return false, nil
	}
	stored := *e
	stored.ID = m.id()
	stored.CreatedAt = time.Now()
	m.events[e.EventID] = &stored
	return true, nil
}

func (m *Memory) PurgePaymentEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, e := range m.events {
		if e.CreatedAt.Before(cutoff) {
			delete(m.events, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) BlockUser(ctx context.Context, userID, blockedUserID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.blocks[userID] == nil {
		m.blocks[userID] = make(map[int64]bool)
	}
	m.blocks[userID][blockedUserID] = true
	return nil
}

func (m *Memory) ListBlockedUsers(ctx context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []int64
	for id := range m.blocks[userID] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// interface guards
var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
