// Package session holds the per-room deal state for the interactive agent.
//
// Flow:
//  1. A room is provisioned for two registered participants.
//  2. Both participants join; the agent then opens role selection.
//  3. The session walks a fixed sequence of steps until the deal
//     completes or a participant restarts it.
//
// Steps only ever move forward. The single exception is Restart, which
// wipes everything back to role selection for the same pair of
// participants.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/p2pmart/dealroom/internal/approval"
)

// Common errors
var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyExists = errors.New("session already exists")
	ErrStepOrder     = errors.New("step would move backwards")
	ErrRoleTaken     = errors.New("role already held by the other participant")
	ErrNotAdmitted   = errors.New("user is not a participant of this room")
)

// Step is the session's position in the deal flow
type Step string

const (
	StepAwaitingJoin        Step = "awaiting_join"
	StepRoleSelection       Step = "role_selection"
	StepAmount              Step = "amount"
	StepRate                Step = "rate"
	StepPaymentMethod       Step = "payment_method"
	StepBlockchain          Step = "blockchain"
	StepCoin                Step = "coin"
	StepBuyerAddress        Step = "buyer_address"
	StepSellerAddress       Step = "seller_address"
	StepDealApproval        Step = "deal_approval"
	StepAwaitingDepositHash Step = "awaiting_deposit_hash"
	StepReleaseApproval     Step = "release_approval"
	StepComplete            Step = "complete"
)

// stepOrder defines the forward-only sequence
var stepOrder = map[Step]int{
	StepAwaitingJoin:        0,
	StepRoleSelection:       1,
	StepAmount:              2,
	StepRate:                3,
	StepPaymentMethod:       4,
	StepBlockchain:          5,
	StepCoin:                6,
	StepBuyerAddress:        7,
	StepSellerAddress:       8,
	StepDealApproval:        9,
	StepAwaitingDepositHash: 10,
	StepReleaseApproval:     11,
	StepComplete:            12,
}

// Role is a participant's side of the deal
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Session is the full deal state for one room
type Session struct {
	RoomID   int64
	RoomName string

	// Registered participants, as provisioned. Matching is
	// case-insensitive; stored in original casing for display.
	Initiator    string
	Counterparty string

	// Join tracking. IDs are learned when each participant enters the
	// room and are needed later for moderation.
	InitiatorJoined    bool
	CounterpartyJoined bool
	InitiatorID        int64
	CounterpartyID     int64
	BothJoinedHandled  bool // the both-joined transition already ran

	Step Step

	// Role assignment
	BuyerUsername  string
	SellerUsername string

	// Deal terms
	Amount        float64
	Rate          float64
	PaymentMethod string
	Blockchain    string
	Coin          string

	BuyerAddress  string
	SellerAddress string

	// Escrow deposit
	DepositAddress string
	DepositHash    string
	DepositAmount  float64

	DealGate    approval.Gate
	ReleaseGate approval.Gate

	// Messages that get re-rendered as the deal progresses
	RoleMessageID     int64
	ApprovalMessageID int64
	ReleaseMessageID  int64

	// One-time side effect markers, keyed by prompt name. Surviving in
	// the session means redelivered updates never re-send a prompt.
	Prompted map[string]bool

	CreatedAt     time.Time
	DealStartedAt time.Time
	CompletedAt   time.Time
}

// New creates a session for a freshly provisioned room
func New(roomID int64, roomName, initiator, counterparty string, now time.Time) *Session {
	return &Session{
		RoomID:       roomID,
		RoomName:     roomName,
		Initiator:    initiator,
		Counterparty: counterparty,
		Step:         StepAwaitingJoin,
		DealGate:     approval.NewGate(),
		ReleaseGate:  approval.NewGate(),
		Prompted:     make(map[string]bool),
		CreatedAt:    now,
	}
}

// IsParticipant reports whether username is one of the two registered
// participants. Comparison is case-insensitive.
func (s *Session) IsParticipant(username string) bool {
	if username == "" {
		return false
	}
	return strings.EqualFold(username, s.Initiator) ||
		strings.EqualFold(username, s.Counterparty)
}

// MarkJoined records that a registered participant entered the room.
// It returns ErrNotAdmitted for anyone else.
func (s *Session) MarkJoined(username string, userID int64) error {
	switch {
	case strings.EqualFold(username, s.Initiator):
		s.InitiatorJoined = true
		s.InitiatorID = userID
	case strings.EqualFold(username, s.Counterparty):
		s.CounterpartyJoined = true
		s.CounterpartyID = userID
	default:
		return ErrNotAdmitted
	}
	return nil
}

// TryBothJoined reports whether the both-joined transition should run
// now. Returns true exactly once, when both participants have joined.
func (s *Session) TryBothJoined() bool {
	if s.BothJoinedHandled || !s.InitiatorJoined || !s.CounterpartyJoined {
		return false
	}
	s.BothJoinedHandled = true
	return true
}

// Advance moves the session to a later step. Moving backwards or
// staying in place is rejected; Restart is the only way back.
func (s *Session) Advance(to Step) error {
	cur, ok := stepOrder[s.Step]
	if !ok {
		return fmt.Errorf("%w: unknown current step %q", ErrStepOrder, s.Step)
	}
	next, ok := stepOrder[to]
	if !ok {
		return fmt.Errorf("%w: unknown target step %q", ErrStepOrder, to)
	}
	if next <= cur {
		return fmt.Errorf("%w: %q -> %q", ErrStepOrder, s.Step, to)
	}
	s.Step = to
	return nil
}

// AssignRole records which side of the deal a participant takes.
// A participant may change their own pick while the other side is
// still open; once the other participant holds the role it is taken.
func (s *Session) AssignRole(username string, role Role) error {
	if !s.IsParticipant(username) {
		return ErrNotAdmitted
	}

	holder := s.BuyerUsername
	other := &s.SellerUsername
	if role == RoleSeller {
		holder = s.SellerUsername
		other = &s.BuyerUsername
	}

	if holder != "" && !strings.EqualFold(holder, username) {
		return ErrRoleTaken
	}

	// Taking a role vacates the participant's previous pick
	if strings.EqualFold(*other, username) {
		*other = ""
	}

	if role == RoleSeller {
		s.SellerUsername = username
	} else {
		s.BuyerUsername = username
	}
	return nil
}

// RoleOf returns the role a participant currently holds, if any
func (s *Session) RoleOf(username string) (Role, bool) {
	if strings.EqualFold(username, s.BuyerUsername) && s.BuyerUsername != "" {
		return RoleBuyer, true
	}
	if strings.EqualFold(username, s.SellerUsername) && s.SellerUsername != "" {
		return RoleSeller, true
	}
	return "", false
}

// RolesFilled reports whether both sides are assigned
func (s *Session) RolesFilled() bool {
	return s.BuyerUsername != "" && s.SellerUsername != ""
}

// MarkPrompted is a check-and-set marker for one-time prompts.
// It returns true the first time a key is marked and false after,
// so redelivered updates skip already-sent messages.
func (s *Session) MarkPrompted(key string) bool {
	if s.Prompted == nil {
		s.Prompted = make(map[string]bool)
	}
	if s.Prompted[key] {
		return false
	}
	s.Prompted[key] = true
	return true
}

// Restart wipes the deal back to role selection. Join state survives:
// the same two participants are still in the room.
func (s *Session) Restart() {
	s.Step = StepRoleSelection
	s.BuyerUsername = ""
	s.SellerUsername = ""
	s.Amount = 0
	s.Rate = 0
	s.PaymentMethod = ""
	s.Blockchain = ""
	s.Coin = ""
	s.BuyerAddress = ""
	s.SellerAddress = ""
	s.DepositAddress = ""
	s.DepositHash = ""
	s.DepositAmount = 0
	s.DealGate.Reset()
	s.ReleaseGate.Reset()
	s.RoleMessageID = 0
	s.ApprovalMessageID = 0
	s.ReleaseMessageID = 0
	s.Prompted = make(map[string]bool)
	s.DealStartedAt = time.Time{}
	s.CompletedAt = time.Time{}
}

// Store holds active sessions keyed by room id
type Store interface {
	Get(roomID int64) (*Session, error)
	Put(s *Session) error
	Delete(roomID int64) error
	List() ([]*Session, error)
}

// MemoryStore is an in-memory Store. Sessions live only as long as the
// agent process; durable state belongs to the registry and the queue.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

// Get returns the session for a room
func (m *MemoryStore) Get(roomID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Put stores or replaces a session
func (m *MemoryStore) Put(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.RoomID] = s
	return nil
}

// Delete removes a session
func (m *MemoryStore) Delete(roomID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[roomID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, roomID)
	return nil
}

// List returns all active sessions
func (m *MemoryStore) List() ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}
