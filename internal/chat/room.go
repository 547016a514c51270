package chat

// Room is a broadcast group. It is owned by the registry goroutine and must
// not be touched from anywhere else.
type Room struct {
	ID      int
	Name    string
	members []*Client
}

func newRoom(id int, name string) *Room {
	return &Room{ID: id, Name: name}
}

func (rm *Room) has(c *Client) bool {
	for _, m := range rm.members {
		if m == c {
			return true
		}
	}
	return false
}

func (rm *Room) add(c *Client) {
	if rm.has(c) {
		return
	}
	rm.members = append(rm.members, c)
}

func (rm *Room) remove(c *Client) bool {
	for i, m := range rm.members {
		if m == c {
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			return true
		}
	}
	return false
}

func (rm *Room) empty() bool {
	return len(rm.members) == 0
}

func (rm *Room) nicknames() []string {
	names := make([]string, 0, len(rm.members))
	for _, m := range rm.members {
		names = append(names, m.Nickname)
	}
	return names
}

func (rm *Room) info() RoomInfo {
	return RoomInfo{ID: rm.ID, Name: rm.Name, Members: rm.nicknames()}
}

// snapshot returns the current member list so deliveries can drop members
// without disturbing the iteration.
func (rm *Room) snapshot(exclude *Client) []*Client {
	out := make([]*Client, 0, len(rm.members))
	for _, m := range rm.members {
		if m != exclude {
			out = append(out, m)
		}
	}
	return out
}
