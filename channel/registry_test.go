package channel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orderbell-io/orderbell-go/types"
)

type fakeSender struct {
	mu     sync.Mutex
	state  types.ConnectionState
	frames []types.ClientFrame
}

func (f *fakeSender) SendFrame(fr types.ClientFrame) error {
	f.mu.Lock()
	f.frames = append(f.frames, fr)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) State() types.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func TestJoinLeaveIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Join("a")
	r.Join("a")
	r.Join("b")
	require.Equal(t, []string{"a", "b"}, r.Rooms())

	r.Leave("a")
	r.Leave("a")
	require.Equal(t, []string{"b"}, r.Rooms())

	r.Leave("never-joined")
	require.Equal(t, []string{"b"}, r.Rooms())
}

func TestJoinWithoutSenderIsDeferred(t *testing.T) {
	r := NewRegistry()
	r.Join("a") // no sender bound: must not panic, just remember
	require.Equal(t, []string{"a"}, r.Rooms())
}

func TestJoinSendsOnlyWhenConnected(t *testing.T) {
	r := NewRegistry()
	s := &fakeSender{state: types.StateDisconnected}
	r.Bind(s)

	r.Join("a")
	require.Empty(t, s.frames)

	s.mu.Lock()
	s.state = types.StateConnected
	s.mu.Unlock()
	r.Join("b")
	require.Equal(t, []types.ClientFrame{{Type: types.FrameJoinRoom, Room: "b"}}, s.frames)
}

func TestReplaySendsAllDesiredRoomsInJoinOrder(t *testing.T) {
	r := NewRegistry()
	s := &fakeSender{state: types.StateConnected}
	r.Bind(s)

	r.Join("first")
	r.Join("second")
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()

	r.Replay()
	require.Equal(t, []types.ClientFrame{
		{Type: types.FrameJoinRoom, Room: "first"},
		{Type: types.FrameJoinRoom, Room: "second"},
	}, s.frames)
}

func TestIgnoresEmptyRoomName(t *testing.T) {
	r := NewRegistry()
	r.Join("")
	require.Empty(t, r.Rooms())
}
