// Package wallet holds the connection state of the user's wallet.
//
// A Session is the single owner of that state. Connect and Disconnect never
// return errors: failures are reported through State.Error, and every change
// is published to subscribers.
package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fundboard/pkg/logging"
	"fundboard/pkg/storage"
)

// Session mirror keys. They are a restart hint only.
const (
	KeyConnected = "walletConnected"
	KeyAddress   = "walletAddress"
)

const (
	DefaultConnectError    = "Failed to connect wallet"
	DefaultDisconnectError = "Failed to disconnect wallet"
)

// AttemptTimeout bounds a shared connect or disconnect attempt, which is not
// cancelled by the caller that started it.
var AttemptTimeout = 2 * time.Minute

// Account is the handle returned by a Connector.
type Account struct {
	Address string
	Source  string
}

// Connector is the external wallet capability.
type Connector interface {
	Connect(ctx context.Context) (*Account, error)
	Disconnect(ctx context.Context) error
}

// Prober is implemented by connectors that can look for an existing
// connection without prompting the user.
type Prober interface {
	Probe(ctx context.Context) (*Account, error)
}

// State is a snapshot of the session.
type State struct {
	Account      *Account `json:"-"`
	Address      string   `json:"address,omitempty"`
	IsConnected  bool     `json:"isConnected"`
	IsConnecting bool     `json:"isConnecting"`
	Error        string   `json:"error,omitempty"`
}

// Session owns the wallet connection state for the lifetime of the process.
type Session struct {
	connector Connector
	store     *storage.Store
	logger    *zap.Logger

	mu          sync.RWMutex
	state       State
	subscribers []chan State

	group       singleflight.Group
	restoreOnce sync.Once
}

// NewSession creates a disconnected session.
func NewSession(connector Connector, store *storage.Store, logger *zap.Logger) *Session {
	return &Session{
		connector: connector,
		store:     store,
		logger:    logging.OrNop(logger),
	}
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastAddress returns the address mirrored by the last successful connect,
// if any.
func (s *Session) LastAddress() (string, bool) {
	if v, ok := s.store.GetString(KeyConnected); !ok || v != "true" {
		return "", false
	}
	return s.store.GetString(KeyAddress)
}

// Connect asks the connector for an account. Concurrent calls share the
// attempt already in flight. A caller whose ctx ends early gets the current
// state back while the shared attempt carries on for the others.
func (s *Session) Connect(ctx context.Context) State {
	return s.shared(ctx, "connect", s.connect)
}

func (s *Session) shared(ctx context.Context, key string, fn func(context.Context)) State {
	ch := s.group.DoChan(key, func() (any, error) {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), AttemptTimeout)
		defer cancel()
		fn(actx)
		return nil, nil
	})
	select {
	case <-ch:
	case <-ctx.Done():
		s.logger.Debug("Caller left shared wallet attempt", zap.String("op", key), zap.Error(ctx.Err()))
	}
	return s.State()
}

func (s *Session) connect(ctx context.Context) {
	s.update(func(st *State) {
		st.IsConnecting = true
		st.Error = ""
	})

	acc, err := s.connector.Connect(ctx)
	if err == nil && (acc == nil || acc.Address == "") {
		err = errors.New(DefaultConnectError)
	}
	if err != nil {
		s.logger.Error("Wallet connection error", zap.Error(err))
		msg := err.Error()
		if msg == "" {
			msg = DefaultConnectError
		}
		s.update(func(st *State) {
			st.Error = msg
			st.IsConnecting = false
		})
		return
	}

	if err := s.store.SetString(KeyConnected, "true"); err != nil {
		s.logger.Warn("Failed to persist wallet state", zap.Error(err))
	}
	if err := s.store.SetString(KeyAddress, acc.Address); err != nil {
		s.logger.Warn("Failed to persist wallet address", zap.Error(err))
	}
	s.logger.Info("Wallet connected", zap.String("address", acc.Address), zap.String("source", acc.Source))

	s.update(func(st *State) {
		st.Account = acc
		st.Address = acc.Address
		st.IsConnected = true
		st.IsConnecting = false
	})
}

// Disconnect releases the connection. When the connector fails the session
// stays connected and State.Error carries the reason.
func (s *Session) Disconnect(ctx context.Context) State {
	return s.shared(ctx, "disconnect", s.disconnect)
}

func (s *Session) disconnect(ctx context.Context) {
	if err := s.connector.Disconnect(ctx); err != nil {
		s.logger.Error("Wallet disconnection error", zap.Error(err))
		msg := err.Error()
		if msg == "" {
			msg = DefaultDisconnectError
		}
		s.update(func(st *State) { st.Error = msg })
		return
	}

	s.update(func(st *State) { *st = State{} })

	if err := s.store.Remove(KeyConnected); err != nil {
		s.logger.Warn("Failed to clear wallet state", zap.Error(err))
	}
	if err := s.store.Remove(KeyAddress); err != nil {
		s.logger.Warn("Failed to clear wallet address", zap.Error(err))
	}
	s.logger.Info("Wallet disconnected")
}

// Restore looks for an existing connection once per session. Failures are
// logged and leave the session disconnected.
func (s *Session) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		probe := s.connector.Connect
		if p, ok := s.connector.(Prober); ok {
			probe = p.Probe
		}
		if addr, ok := s.LastAddress(); ok {
			s.logger.Debug("Previous session found", zap.String("address", addr))
		}

		acc, err := probe(ctx)
		if err != nil || acc == nil || acc.Address == "" {
			s.logger.Debug("No existing wallet connection", zap.Error(err))
			return
		}
		s.update(func(st *State) {
			st.Account = acc
			st.Address = acc.Address
			st.IsConnected = true
		})
	})
}

// Subscribe returns a channel receiving a snapshot after every change.
func (s *Session) Subscribe() chan State {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan State, 16)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes ch.
func (s *Session) Unsubscribe(ch chan State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (s *Session) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	snapshot := s.state
	for _, sub := range s.subscribers {
		select {
		case sub <- snapshot:
		default:
		}
	}
}
