package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/andy6609/roomchat/internal/eventlog"
)

type Registry struct {
	events  chan Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  *slog.Logger
	journal eventlog.Sink

	// Single-writer ownership: everything below is only accessed in Run.
	clients    []*Client
	rooms      []*Room
	lastRoomID int
	dropped    []*Client
}

func NewRegistry(buffer int, logger *slog.Logger, journal eventlog.Sink) *Registry {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	if journal == nil {
		journal = eventlog.Discard
	}
	return &Registry{
		events:  make(chan Event, buffer),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		logger:  logger,
		journal: journal,
	}
}

// Stop signals the Run loop to exit.
func (r *Registry) Stop() {
	close(r.stopCh)
}

// Wait blocks until the Run loop has completely finished.
func (r *Registry) Wait() {
	<-r.doneCh
}

func (r *Registry) Run() {
	defer close(r.doneCh)

	for {
		select {
		case ev := <-r.events:
			start := time.Now()
			res := r.handle(ev)
			r.flushDropped()

			ConnectedClients.Set(float64(len(r.clients)))
			OpenRooms.Set(float64(len(r.rooms)))
			label := ev.Type.String()
			if ev.Type == EventCommand {
				label = "command_" + ev.Command.Kind.String()
			}
			MessagesTotal.WithLabelValues(label).Inc()
			EventProcessingDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

			if ev.ReplyChan != nil {
				ev.ReplyChan <- res
			}
		case <-r.stopCh:
			r.closeAll()
			return
		}
	}
}

// Register admits a client that completed the handshake. The nickname is
// stored verbatim.
func (r *Registry) Register(c *Client, nickname string) error {
	return r.request(Event{Type: EventRegister, Client: c, Text: nickname}).Err
}

// Unregister removes a client, leaving its room first. Unknown or already
// removed clients are ignored.
func (r *Registry) Unregister(c *Client, reason string) {
	r.request(Event{Type: EventUnregister, Client: c, Text: reason})
}

// Say relays chat text to the other members of the client's room. It does
// not wait for delivery.
func (r *Registry) Say(c *Client, text string) {
	r.post(Event{Type: EventChat, Client: c, Text: text})
}

// Dispatch executes a parsed command on behalf of c. Replies go to the
// client's outbound queue.
func (r *Registry) Dispatch(c *Client, cmd Command) {
	r.post(Event{Type: EventCommand, Client: c, Command: cmd})
}

// CreateRoom allocates the next room id. A non-nil client is joined to the
// new room in the same step.
func (r *Registry) CreateRoom(c *Client, name string) (RoomInfo, error) {
	res := r.request(Event{Type: EventCreateRoom, Client: c, Text: name})
	return res.Room, res.Err
}

func (r *Registry) GetRoom(id int) (RoomInfo, error) {
	res := r.request(Event{Type: EventGetRoom, RoomID: id})
	return res.Room, res.Err
}

// DeleteRoom removes an empty room. The emptiness check and the removal
// happen in one step.
func (r *Registry) DeleteRoom(id int) error {
	return r.request(Event{Type: EventDeleteRoom, RoomID: id}).Err
}

func (r *Registry) Join(c *Client, id int) (RoomInfo, error) {
	res := r.request(Event{Type: EventJoin, Client: c, RoomID: id})
	return res.Room, res.Err
}

// Leave reports false when the client was not in a room.
func (r *Registry) Leave(c *Client) bool {
	return r.request(Event{Type: EventLeave, Client: c}).OK
}

func (r *Registry) Members(c *Client) ([]string, error) {
	res := r.request(Event{Type: EventMembers, Client: c})
	return res.Names, res.Err
}

func (r *Registry) RenameRoom(c *Client, name string) (RoomInfo, error) {
	res := r.request(Event{Type: EventRenameRoom, Client: c, Text: name})
	return res.Room, res.Err
}

func (r *Registry) Rooms() []RoomInfo {
	return r.request(Event{Type: EventRooms}).Rooms
}

func (r *Registry) Sessions() []SessionInfo {
	return r.request(Event{Type: EventSessions}).Sessions
}

func (r *Registry) post(ev Event) {
	select {
	case r.events <- ev:
	case <-r.stopCh:
	}
}

func (r *Registry) request(ev Event) Result {
	ev.ReplyChan = make(chan Result, 1)
	select {
	case r.events <- ev:
	case <-r.stopCh:
		return Result{Err: ErrRegistryClosed}
	}
	select {
	case res := <-ev.ReplyChan:
		return res
	case <-r.doneCh:
		// Run replies before it exits, so a processed event is never lost here.
		select {
		case res := <-ev.ReplyChan:
			return res
		default:
			return Result{Err: ErrRegistryClosed}
		}
	}
}

func (r *Registry) handle(ev Event) Result {
	c := ev.Client
	switch ev.Type {
	case EventRegister:
		return Result{Err: r.handleRegister(c, ev.Text)}
	case EventUnregister:
		reason := ev.Text
		if reason == "" {
			reason = "disconnected"
		}
		return Result{OK: r.removeClient(c, reason)}
	case EventChat:
		return Result{OK: r.say(c, ev.Text)}
	case EventCommand:
		r.handleCommand(c, ev.Command)
		return Result{OK: true}
	case EventCreateRoom:
		if c != nil && !r.active(c) {
			return Result{Err: ErrNotRegistered}
		}
		info := r.createRoom(ev.Text)
		if c != nil {
			info, _ = r.join(c, info.ID)
		}
		return Result{Room: info}
	case EventGetRoom:
		rm := r.findRoom(ev.RoomID)
		if rm == nil {
			return Result{Err: ErrRoomNotFound}
		}
		return Result{Room: rm.info()}
	case EventDeleteRoom:
		return Result{Err: r.deleteRoom(ev.RoomID)}
	case EventJoin:
		info, err := r.join(c, ev.RoomID)
		return Result{Room: info, Err: err}
	case EventLeave:
		return Result{OK: r.leave(c)}
	case EventMembers:
		names, err := r.members(c)
		return Result{Names: names, Err: err}
	case EventRenameRoom:
		info, err := r.rename(c, ev.Text)
		return Result{Room: info, Err: err}
	case EventRooms:
		return Result{Rooms: r.roomInfos()}
	case EventSessions:
		return Result{Sessions: r.sessionInfos()}
	}
	return Result{}
}

func (r *Registry) handleRegister(c *Client, nickname string) error {
	if c == nil {
		return ErrNotRegistered
	}
	if c.registered {
		return nil
	}
	c.Nickname = nickname
	c.registered = true
	r.clients = append(r.clients, c)

	r.logger.Info("client registered", "id", c.ID, "addr", c.Addr, "nickname", nickname)
	r.record(fmt.Sprintf("Client %s connected. Nickname: %s.", c.Addr, nickname))
	return nil
}

func (r *Registry) handleCommand(c *Client, cmd Command) {
	if !r.active(c) {
		return
	}

	switch cmd.Kind {
	case CommandChat:
		r.say(c, cmd.Text)
	case CommandInvalid:
		r.deliver(c, cmd.Reason)
	case CommandHelp:
		r.deliver(c, helpText)
	case CommandRoomList:
		r.deliver(c, formatRoomList(r.rooms))
	case CommandRoomConnect:
		if _, err := r.join(c, cmd.RoomID); err != nil {
			r.deliver(c, replyForError(err, cmd.RoomID))
		}
	case CommandRoomCreate:
		info := r.createRoom(cmd.Text)
		r.deliver(c, fmt.Sprintf("Room %q created. ID: %d.", info.Name, info.ID))
		_, _ = r.join(c, info.ID)
	case CommandRoomLeave:
		if !r.leave(c) {
			r.deliver(c, "You are not in a room.")
		}
	case CommandRoomMembers:
		names, err := r.members(c)
		if err != nil {
			r.deliver(c, replyForError(err, 0))
			return
		}
		var b strings.Builder
		b.WriteString("Room members:")
		for _, name := range names {
			fmt.Fprintf(&b, "\nName: %q", name)
		}
		r.deliver(c, b.String())
	case CommandRoomDelete:
		if err := r.deleteRoom(cmd.RoomID); err != nil {
			r.deliver(c, replyForError(err, cmd.RoomID))
			return
		}
		r.deliver(c, fmt.Sprintf("Room %d deleted.", cmd.RoomID))
	case CommandRoomRename:
		if _, err := r.rename(c, cmd.Text); err != nil {
			r.deliver(c, replyForError(err, 0))
		}
	}
}

func replyForError(err error, roomID int) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return fmt.Sprintf("Room %d does not exist.", roomID)
	case errors.Is(err, ErrRoomNotEmpty):
		return fmt.Sprintf("Room %d is not empty.", roomID)
	case errors.Is(err, ErrNotInRoom):
		return "You are not in a room."
	default:
		return "ERR " + err.Error()
	}
}

func formatRoomList(rooms []*Room) string {
	if len(rooms) == 0 {
		return "There are no rooms on the server."
	}
	var b strings.Builder
	b.WriteString("Rooms:")
	for _, rm := range rooms {
		fmt.Fprintf(&b, "\nName: %q. ID: %d. Members: %d", rm.Name, rm.ID, len(rm.members))
	}
	return b.String()
}

func (r *Registry) active(c *Client) bool {
	return c != nil && c.registered && !c.removed
}

func (r *Registry) findRoom(id int) *Room {
	for _, rm := range r.rooms {
		if rm.ID == id {
			return rm
		}
	}
	return nil
}

func (r *Registry) createRoom(name string) RoomInfo {
	r.lastRoomID++
	rm := newRoom(r.lastRoomID, name)
	r.rooms = append(r.rooms, rm)

	r.logger.Info("room created", "room_id", rm.ID, "name", name)
	r.record(fmt.Sprintf("Room %d created. Name: %s.", rm.ID, name))
	return rm.info()
}

func (r *Registry) deleteRoom(id int) error {
	for i, rm := range r.rooms {
		if rm.ID != id {
			continue
		}
		if !rm.empty() {
			return ErrRoomNotEmpty
		}
		r.broadcast(rm, fmt.Sprintf("Room %d was deleted.", id), nil)
		r.rooms = append(r.rooms[:i], r.rooms[i+1:]...)

		r.logger.Info("room deleted", "room_id", id)
		r.record(fmt.Sprintf("Room %d deleted.", id))
		return nil
	}
	return ErrRoomNotFound
}

// join leaves the current room before entering the target so a client is
// never listed in two rooms. The joiner receives its own join notice.
func (r *Registry) join(c *Client, id int) (RoomInfo, error) {
	if !r.active(c) {
		return RoomInfo{}, ErrNotRegistered
	}
	rm := r.findRoom(id)
	if rm == nil {
		return RoomInfo{}, ErrRoomNotFound
	}
	r.leave(c)

	rm.add(c)
	c.roomID = rm.ID
	r.broadcast(rm, fmt.Sprintf("%s joined the room.", c.Nickname), nil)
	return rm.info(), nil
}

func (r *Registry) leave(c *Client) bool {
	if c == nil || c.roomID == 0 {
		return false
	}
	rm := r.findRoom(c.roomID)
	c.roomID = 0
	if rm == nil {
		return true
	}
	rm.remove(c)
	r.broadcast(rm, fmt.Sprintf("%s left the room.", c.Nickname), nil)
	return true
}

func (r *Registry) members(c *Client) ([]string, error) {
	if c == nil || c.roomID == 0 {
		return nil, ErrNotInRoom
	}
	rm := r.findRoom(c.roomID)
	if rm == nil {
		return nil, ErrNotInRoom
	}
	return rm.nicknames(), nil
}

func (r *Registry) rename(c *Client, name string) (RoomInfo, error) {
	if c == nil || c.roomID == 0 {
		return RoomInfo{}, ErrNotInRoom
	}
	rm := r.findRoom(c.roomID)
	if rm == nil {
		return RoomInfo{}, ErrNotInRoom
	}
	rm.Name = name
	r.broadcast(rm, fmt.Sprintf("%s renamed the room to %q.", c.Nickname, name), nil)
	r.record(fmt.Sprintf("Room %d renamed to %s by %s.", rm.ID, name, c.Nickname))
	return rm.info(), nil
}

func (r *Registry) say(c *Client, text string) bool {
	if !r.active(c) || c.roomID == 0 {
		return false
	}
	rm := r.findRoom(c.roomID)
	if rm == nil {
		return false
	}
	r.broadcast(rm, c.Nickname+": "+text, c)
	return true
}

func (r *Registry) broadcast(rm *Room, line string, exclude *Client) {
	for _, m := range rm.snapshot(exclude) {
		r.deliver(m, line)
	}
}

// removeClient is the single departure path for both graceful and failed
// clients. It reports false when the client was already gone.
func (r *Registry) removeClient(c *Client, reason string) bool {
	if !r.active(c) {
		return false
	}
	c.removed = true
	r.leave(c)

	for i, other := range r.clients {
		if other == c {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			break
		}
	}

	// Closing Out stops the writer goroutine gracefully.
	close(c.Out)
	if c.Conn != nil {
		_ = c.Conn.Close()
	}

	r.logger.Info("client left", "id", c.ID, "addr", c.Addr, "nickname", c.Nickname, "reason", reason)
	r.record(fmt.Sprintf("Client %s disconnected. Nickname: %s.", c.Addr, c.Nickname))
	return true
}

// flushDropped disconnects clients whose outbound queue overflowed. Their
// departure notices can overflow further queues, hence the loop.
func (r *Registry) flushDropped() {
	for len(r.dropped) > 0 {
		c := r.dropped[0]
		r.dropped = r.dropped[1:]
		if r.removeClient(c, "send buffer full") {
			DroppedClients.Inc()
		}
	}
}

func (r *Registry) closeAll() {
	for _, c := range r.clients {
		c.removed = true
		close(c.Out)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	}
	r.logger.Info("registry stopped", "clients", len(r.clients), "rooms", len(r.rooms))
	r.clients = nil
	ConnectedClients.Set(0)
}

func (r *Registry) roomInfos() []RoomInfo {
	out := make([]RoomInfo, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm.info())
	}
	return out
}

func (r *Registry) sessionInfos() []SessionInfo {
	out := make([]SessionInfo, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, SessionInfo{ID: c.ID, Addr: c.Addr, Nickname: c.Nickname, RoomID: c.roomID})
	}
	return out
}

func (r *Registry) record(text string) {
	journal(r.journal, r.logger, text)
}

func journal(sink eventlog.Sink, logger *slog.Logger, text string) {
	if err := sink.Write(time.Now(), text); err != nil {
		logger.Warn("event journal write failed", "error", err)
	}
}

// deliver never blocks: a client that cannot keep up is queued for removal
// instead of stalling the registry.
func (r *Registry) deliver(c *Client, line string) {
	if c.removed {
		return
	}
	select {
	case c.Out <- line:
	default:
		r.dropped = append(r.dropped, c)
	}
}
