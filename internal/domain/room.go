package domain

import "time"

// Room is the transient set of live connections sharing one principal
// code. It is not safe for concurrent use; the relay guards it.
type Room struct {
	Code      string
	Members   map[string]*Connection
	CreatedAt time.Time
}

func NewRoom(code string) *Room {
	return &Room{
		Code:      code,
		Members:   make(map[string]*Connection),
		CreatedAt: time.Now().UTC(),
	}
}

func (r *Room) Add(conn *Connection) {
	r.Members[conn.ID] = conn
}

func (r *Room) Remove(connID string) bool {
	if _, ok := r.Members[connID]; !ok {
		return false
	}
	delete(r.Members, connID)
	return true
}

func (r *Room) Empty() bool {
	return len(r.Members) == 0
}
