package chat

// Conn is one framed, bidirectional client transport. Every record is a
// single line of UTF-8 text.
type Conn interface {
	ReadRecord() (string, error)
	WriteRecord(line string) error
	RemoteAddr() string
	Close() error
}

type Client struct {
	ID       string
	Conn     Conn
	Addr     string
	Nickname string
	Out      chan string // outbound messages to be written by the writer goroutine

	// Owned by the registry goroutine.
	roomID     int
	registered bool
	removed    bool
}

// RoomInfo is a point-in-time copy of a room.
type RoomInfo struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type SessionInfo struct {
	ID       string `json:"id"`
	Addr     string `json:"addr"`
	Nickname string `json:"nickname"`
	RoomID   int    `json:"room_id,omitempty"`
}

type EventType int

const (
	EventRegister EventType = iota
	EventUnregister
	EventChat
	EventCommand
	EventCreateRoom
	EventGetRoom
	EventDeleteRoom
	EventJoin
	EventLeave
	EventMembers
	EventRenameRoom
	EventRooms
	EventSessions
)

var eventNames = map[EventType]string{
	EventRegister:   "register",
	EventUnregister: "unregister",
	EventChat:       "chat",
	EventCommand:    "command",
	EventCreateRoom: "create_room",
	EventGetRoom:    "get_room",
	EventDeleteRoom: "delete_room",
	EventJoin:       "join",
	EventLeave:      "leave",
	EventMembers:    "members",
	EventRenameRoom: "rename_room",
	EventRooms:      "rooms",
	EventSessions:   "sessions",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

type Event struct {
	Type      EventType
	Client    *Client
	Text      string
	RoomID    int
	Command   Command
	ReplyChan chan Result
}

// Result carries the outcome of a request event back to its caller.
type Result struct {
	Room     RoomInfo
	Rooms    []RoomInfo
	Names    []string
	Sessions []SessionInfo
	OK       bool
	Err      error
}

var (
	ErrRoomNotFound   = errorString("room_not_found")
	ErrRoomNotEmpty   = errorString("room_not_empty")
	ErrNotInRoom      = errorString("not_in_room")
	ErrNotRegistered  = errorString("not_registered")
	ErrRegistryClosed = errorString("registry_closed")
	ErrBind           = errorString("bind_failed")
	ErrRecordTooLong  = errorString("record_too_long")
	ErrRecordBreak    = errorString("record_contains_line_break")
)

type errorString string

func (e errorString) Error() string { return string(e) }
