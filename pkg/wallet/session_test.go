package wallet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fundboard/pkg/storage"
)

type MockConnector struct {
	mock.Mock
}

func (m *MockConnector) Connect(ctx context.Context) (*Account, error) {
	args := m.Called(ctx)
	acc, _ := args.Get(0).(*Account)
	return acc, args.Error(1)
}

func (m *MockConnector) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockProber struct {
	MockConnector
}

func (m *MockProber) Probe(ctx context.Context) (*Account, error) {
	args := m.Called(ctx)
	acc, _ := args.Get(0).(*Account)
	return acc, args.Error(1)
}

func newStore() *storage.Store {
	return storage.New(storage.NewMemoryBackend(), nil)
}

func TestConnectSuccess(t *testing.T) {
	conn := new(MockConnector)
	conn.On("Connect", mock.Anything).Return(&Account{Address: "0xABC"}, nil)
	store := newStore()
	s := NewSession(conn, store, nil)

	st := s.Connect(context.Background())

	assert.Equal(t, "0xABC", st.Address)
	assert.True(t, st.IsConnected)
	assert.False(t, st.IsConnecting)
	assert.Empty(t, st.Error)
	require.NotNil(t, st.Account)

	v, ok := store.GetString(KeyConnected)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	v, ok = store.GetString(KeyAddress)
	assert.True(t, ok)
	assert.Equal(t, "0xABC", v)

	addr, ok := s.LastAddress()
	assert.True(t, ok)
	assert.Equal(t, "0xABC", addr)
	conn.AssertExpectations(t)
}

func TestConnectFailure(t *testing.T) {
	tests := []struct {
		name    string
		acc     *Account
		err     error
		wantErr string
	}{
		{"capability raises", nil, errors.New("boom"), "boom"},
		{"nil account", nil, nil, DefaultConnectError},
		{"account without address", &Account{}, nil, DefaultConnectError},
		{"empty error message", nil, errors.New(""), DefaultConnectError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := new(MockConnector)
			conn.On("Connect", mock.Anything).Return(tt.acc, tt.err)
			store := newStore()
			s := NewSession(conn, store, nil)

			st := s.Connect(context.Background())

			assert.False(t, st.IsConnected)
			assert.False(t, st.IsConnecting)
			assert.Equal(t, tt.wantErr, st.Error)
			_, ok := store.GetString(KeyConnected)
			assert.False(t, ok)
		})
	}
}

func TestConnectClearsPreviousError(t *testing.T) {
	conn := new(MockConnector)
	conn.On("Connect", mock.Anything).Return(nil, errors.New("boom")).Once()
	conn.On("Connect", mock.Anything).Return(&Account{Address: "0x1"}, nil).Once()
	s := NewSession(conn, newStore(), nil)

	assert.Equal(t, "boom", s.Connect(context.Background()).Error)
	st := s.Connect(context.Background())
	assert.Empty(t, st.Error)
	assert.True(t, st.IsConnected)
}

func TestConnectPublishesConnectingThenSettled(t *testing.T) {
	conn := new(MockConnector)
	conn.On("Connect", mock.Anything).Return(&Account{Address: "0x1"}, nil)
	s := NewSession(conn, newStore(), nil)
	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	s.Connect(context.Background())

	first := <-sub
	assert.True(t, first.IsConnecting)
	assert.Empty(t, first.Error)
	second := <-sub
	assert.False(t, second.IsConnecting)
	assert.True(t, second.IsConnected)
}

type blockingConnector struct {
	calls   int32
	release chan struct{}
	entered chan struct{}
}

func (b *blockingConnector) Connect(context.Context) (*Account, error) {
	if atomic.AddInt32(&b.calls, 1) == 1 {
		close(b.entered)
	}
	<-b.release
	return &Account{Address: "0xFEED"}, nil
}

func (b *blockingConnector) Disconnect(context.Context) error { return nil }

func TestConnectIsNotReentrant(t *testing.T) {
	defer goleak.VerifyNone(t)
	conn := &blockingConnector{release: make(chan struct{}), entered: make(chan struct{})}
	s := NewSession(conn, newStore(), nil)

	var wg sync.WaitGroup
	results := make([]State, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Connect(context.Background())
		}(i)
	}
	<-conn.entered
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.State().IsConnecting)
	close(conn.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&conn.calls))
	for _, st := range results {
		assert.True(t, st.IsConnected)
		assert.Equal(t, "0xFEED", st.Address)
	}
}

func TestDisconnectSuccess(t *testing.T) {
	conn := new(MockConnector)
	conn.On("Connect", mock.Anything).Return(&Account{Address: "0xABC"}, nil)
	conn.On("Disconnect", mock.Anything).Return(nil)
	store := newStore()
	s := NewSession(conn, store, nil)
	s.Connect(context.Background())

	st := s.Disconnect(context.Background())

	assert.Equal(t, State{}, st)
	_, ok := store.GetString(KeyConnected)
	assert.False(t, ok)
	_, ok = store.GetString(KeyAddress)
	assert.False(t, ok)
	_, ok = s.LastAddress()
	assert.False(t, ok)
}

func TestDisconnectFailureKeepsSessionConnected(t *testing.T) {
	conn := new(MockConnector)
	conn.On("Connect", mock.Anything).Return(&Account{Address: "0xABC"}, nil)
	conn.On("Disconnect", mock.Anything).Return(errors.New("provider unavailable"))
	store := newStore()
	s := NewSession(conn, store, nil)
	s.Connect(context.Background())

	st := s.Disconnect(context.Background())

	assert.True(t, st.IsConnected)
	assert.Equal(t, "0xABC", st.Address)
	assert.Equal(t, "provider unavailable", st.Error)
	v, _ := store.GetString(KeyAddress)
	assert.Equal(t, "0xABC", v)
}

func TestRestoreUsesProbeOnce(t *testing.T) {
	conn := new(MockProber)
	conn.On("Probe", mock.Anything).Return(&Account{Address: "0xBEEF"}, nil).Once()
	store := newStore()
	s := NewSession(conn, store, nil)

	s.Restore(context.Background())
	s.Restore(context.Background())

	st := s.State()
	assert.True(t, st.IsConnected)
	assert.False(t, st.IsConnecting)
	assert.Equal(t, "0xBEEF", st.Address)
	conn.AssertNumberOfCalls(t, "Probe", 1)
	conn.AssertNotCalled(t, "Connect", mock.Anything)

	// The restore path does not rewrite the mirror.
	_, ok := store.GetString(KeyAddress)
	assert.False(t, ok)
}

func TestRestoreFallsBackToConnectAndSwallowsFailure(t *testing.T) {
	conn := new(MockConnector)
	conn.On("Connect", mock.Anything).Return(nil, errors.New("locked"))
	s := NewSession(conn, newStore(), nil)

	s.Restore(context.Background())

	assert.Equal(t, State{}, s.State())
	conn.AssertNumberOfCalls(t, "Connect", 1)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := NewSession(StaticConnector{}, newStore(), nil)
	sub := s.Subscribe()
	s.Unsubscribe(sub)
	_, open := <-sub
	assert.False(t, open)
}

// waitingConnector blocks until released or until its ctx ends.
type waitingConnector struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (w *waitingConnector) Connect(ctx context.Context) (*Account, error) {
	w.once.Do(func() { close(w.entered) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.release:
		return &Account{Address: "0xFEED"}, nil
	}
}

func (w *waitingConnector) Disconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.release:
		return nil
	}
}

func TestConnectCancelledCallerDoesNotFailOthers(t *testing.T) {
	defer goleak.VerifyNone(t)
	conn := &waitingConnector{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(conn, newStore(), nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan State, 1)
	go func() { doneA <- s.Connect(ctxA) }()
	<-conn.entered

	doneB := make(chan State, 1)
	go func() { doneB <- s.Connect(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	stA := <-doneA
	assert.True(t, stA.IsConnecting, "the early caller sees the attempt still running")
	assert.Empty(t, stA.Error)

	close(conn.release)
	stB := <-doneB
	assert.True(t, stB.IsConnected)
	assert.Equal(t, "0xFEED", stB.Address)
	assert.Empty(t, stB.Error)
	assert.Equal(t, stB, s.State())
}

func TestDisconnectCancelledCallerDoesNotFailOthers(t *testing.T) {
	defer goleak.VerifyNone(t)
	conn := &waitingConnector{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(conn, newStore(), nil)
	s.update(func(st *State) {
		st.Address = "0xFEED"
		st.IsConnected = true
	})

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan State, 1)
	go func() { doneA <- s.Disconnect(ctxA) }()
	time.Sleep(20 * time.Millisecond)
	doneB := make(chan State, 1)
	go func() { doneB <- s.Disconnect(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	<-doneA
	close(conn.release)
	stB := <-doneB
	assert.False(t, stB.IsConnected)
	assert.Empty(t, stB.Error)
}
