package channel

import (
	"sync"

	"github.com/orderbell-io/orderbell-go/tool"
	"github.com/orderbell-io/orderbell-go/types"
)

// FrameSender pushes client frames onto the physical connection.
type FrameSender interface {
	SendFrame(f types.ClientFrame) error
	State() types.ConnectionState
}

// Registry tracks the set of rooms the caller wants to be in. The server has
// no memory of room membership across a dropped connection, so the manager
// replays every desired room on each transition into Connected.
type Registry struct {
	mu      sync.Mutex
	desired map[string]struct{}
	order   []string // join order, for deterministic replay
	sender  FrameSender
}

// NewRegistry creates an empty registry. Bind a sender before joining rooms
// while connected; joins made without a sender are replayed later.
func NewRegistry() *Registry {
	return &Registry{desired: make(map[string]struct{})}
}

// Bind attaches the frame sender the registry uses for immediate joins and
// leaves. The manager calls this once at construction.
func (r *Registry) Bind(s FrameSender) {
	r.mu.Lock()
	r.sender = s
	r.mu.Unlock()
}

// Join adds room to the desired set. Idempotent. When connected, the join
// frame is sent immediately; otherwise it goes out on the next replay.
func (r *Registry) Join(room string) {
	if room == "" {
		return
	}
	r.mu.Lock()
	if _, ok := r.desired[room]; ok {
		r.mu.Unlock()
		return
	}
	r.desired[room] = struct{}{}
	r.order = append(r.order, room)
	sender := r.sender
	r.mu.Unlock()

	r.send(sender, types.ClientFrame{Type: types.FrameJoinRoom, Room: room})
}

// Leave removes room from the desired set and sends a leave frame when
// connected.
func (r *Registry) Leave(room string) {
	r.mu.Lock()
	if _, ok := r.desired[room]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.desired, room)
	for i, name := range r.order {
		if name == room {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	sender := r.sender
	r.mu.Unlock()

	r.send(sender, types.ClientFrame{Type: types.FrameLeaveRoom, Room: room})
}

// Rooms returns the desired rooms in join order.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.order...)
}

// Replay re-sends join frames for every desired room. The manager calls this
// after every successful handshake, including post-reconnect.
func (r *Registry) Replay() {
	r.mu.Lock()
	rooms := append([]string{}, r.order...)
	sender := r.sender
	r.mu.Unlock()

	for _, room := range rooms {
		r.send(sender, types.ClientFrame{Type: types.FrameJoinRoom, Room: room})
	}
}

func (r *Registry) send(sender FrameSender, f types.ClientFrame) {
	if sender == nil || sender.State() != types.StateConnected {
		return
	}
	if err := sender.SendFrame(f); err != nil {
		tool.DefaultLogger.Warnf("[Rooms] Failed to send %s for %q: %v", f.Type, f.Room, err)
	}
}
