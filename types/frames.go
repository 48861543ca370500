package types

// Frame types sent by the client.
const (
	FrameJoinRoom  = "join_room"
	FrameLeaveRoom = "leave_room"
	FramePing      = "ping"
)

// Frame types sent by the server.
const (
	FrameConnected    = "connected"
	FrameRoomJoined   = "room_joined"
	FrameNotification = "notification"
	FramePong         = "pong"
)

// ClientFrame is a client-to-server message on the push channel.
type ClientFrame struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
	ID   string `json:"id,omitempty"` // ping correlation id
}

// ServerFrame is a server-to-client message on the push channel.
type ServerFrame struct {
	Type            string             `json:"type"`
	Room            string             `json:"room,omitempty"`
	ID              string             `json:"id,omitempty"` // echoed ping id on pong
	ServerInfo      string             `json:"serverInfo,omitempty"`
	ServerTimestamp int64              `json:"serverTimestamp,omitempty"`
	Event           *NotificationEvent `json:"event,omitempty"`
}
