// Package session tracks the connected wallet: which address is active, which
// chain it is on, and who needs to hear when either changes.
package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotConnected is returned when an operation needs a connected wallet
var ErrNotConnected = errors.New("no wallet connected")

// ErrInvalidAddress is returned when connecting the zero address
var ErrInvalidAddress = errors.New("wallet address cannot be the zero address")

// subscriberBuffer is how many unread changes a subscriber may lag behind
// before further changes are dropped for it
const subscriberBuffer = 16

// ChangeKind says what happened to the session
type ChangeKind string

const (
	ChangeConnected      ChangeKind = "connected"
	ChangeDisconnected   ChangeKind = "disconnected"
	ChangeNetworkChanged ChangeKind = "network_changed"
)

// Change is delivered to subscribers after every state transition
type Change struct {
	Kind     ChangeKind     `json:"kind"`
	Network  Network        `json:"network"`
	Address  common.Address `json:"address"`
	Previous common.Address `json:"previous"`
}

// State is a point-in-time copy of the session
type State struct {
	Network   Network        `json:"network"`
	Address   common.Address `json:"address"`
	Connected bool           `json:"connected"`
	Expected  bool           `json:"on_expected_network"`
}

// Session holds the wallet connection shared by every request
type Session struct {
	logger   *slog.Logger
	subs     map[<-chan Change]chan Change
	address  common.Address
	network  Network
	expected uint64
	mu       sync.RWMutex
}

// New creates a disconnected session that expects the given chain
func New(expectedChainID uint64, logger *slog.Logger) *Session {
	return &Session{
		logger:   logger,
		subs:     make(map[<-chan Change]chan Change),
		expected: expectedChainID,
	}
}

// Connect attaches a wallet. Connecting while another wallet is connected
// replaces it.
func (s *Session) Connect(address common.Address, chainID uint64) error {
	if address == (common.Address{}) {
		return ErrInvalidAddress
	}

	s.mu.Lock()
	previous := s.address
	s.address = address
	s.network = LookupNetwork(chainID)
	change := Change{Kind: ChangeConnected, Address: address, Previous: previous, Network: s.network}
	s.mu.Unlock()

	s.logger.Info("wallet connected", "address", address.Hex(), "network", change.Network.Name)
	s.notify(change)
	return nil
}

// Disconnect detaches the wallet. It is a no-op when nothing is connected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.address == (common.Address{}) {
		s.mu.Unlock()
		return
	}
	previous := s.address
	s.address = common.Address{}
	s.network = Network{}
	s.mu.Unlock()

	s.logger.Info("wallet disconnected", "address", previous.Hex())
	s.notify(Change{Kind: ChangeDisconnected, Previous: previous})
}

// SwitchNetwork moves the connected wallet to another chain
func (s *Session) SwitchNetwork(chainID uint64) (Network, error) {
	s.mu.Lock()
	if s.address == (common.Address{}) {
		s.mu.Unlock()
		return Network{}, ErrNotConnected
	}
	if s.network.ChainID == chainID {
		n := s.network
		s.mu.Unlock()
		return n, nil
	}
	s.network = LookupNetwork(chainID)
	change := Change{Kind: ChangeNetworkChanged, Address: s.address, Previous: s.address, Network: s.network}
	s.mu.Unlock()

	s.logger.Info("wallet switched network", "address", change.Address.Hex(), "network", change.Network.Name)
	s.notify(change)
	return change.Network, nil
}

// Address returns the connected wallet address
func (s *Session) Address() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address, s.address != (common.Address{})
}

// Network returns the network of the connected wallet
func (s *Session) Network() Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network
}

// ExpectedNetwork returns the network the contract lives on
func (s *Session) ExpectedNetwork() Network {
	return LookupNetwork(s.expected)
}

// OnExpectedNetwork reports whether a wallet is connected to the contract's chain
func (s *Session) OnExpectedNetwork() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address != (common.Address{}) && s.network.ChainID == s.expected
}

// Snapshot returns the whole session state under one lock
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	connected := s.address != (common.Address{})
	return State{
		Address:   s.address,
		Network:   s.network,
		Connected: connected,
		Expected:  connected && s.network.ChainID == s.expected,
	}
}

// Subscribe returns a channel receiving every subsequent change
func (s *Session) Subscribe() <-chan Change {
	ch := make(chan Change, subscriberBuffer)
	s.mu.Lock()
	s.subs[ch] = ch
	s.mu.Unlock()
	return ch
}

// Unsubscribe stops delivery to ch and closes it
func (s *Session) Unsubscribe(ch <-chan Change) {
	s.mu.Lock()
	sub, ok := s.subs[ch]
	delete(s.subs, ch)
	s.mu.Unlock()
	if ok {
		close(sub)
	}
}

// notify fans a change out without blocking on slow subscribers
func (s *Session) notify(change Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		select {
		case sub <- change:
		default:
			s.logger.Warn("session subscriber is full, dropping change", "kind", change.Kind)
		}
	}
}
