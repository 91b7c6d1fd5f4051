package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code := NewCode()
		require.Len(t, code, CodeLength)
		require.True(t, ValidCode(code), code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestAppendCodeChars_RejectsBiasedBytes(t *testing.T) {
	code := appendCodeChars(nil, []byte{255, 252, 0, 35, 251, 36, 1, 2, 3})
	assert.Equal(t, "A99ABC", string(code))

	partial := appendCodeChars([]byte("AB"), []byte{253, 254})
	assert.Equal(t, "AB", string(partial))
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("AB12CD"))
	assert.False(t, ValidCode(""))
	assert.False(t, ValidCode("ab12cd"))
	assert.False(t, ValidCode("AB-12"))
	assert.Equal(t, "AB12CD", NormalizeCode("  ab12cd "))
}

func TestIdentityJoinCode(t *testing.T) {
	p := NewPrincipal("Asha", "9876543210")
	code, ok := PrincipalIdentity(p).JoinCode()
	assert.True(t, ok)
	assert.Equal(t, p.Code, code)

	searching := ObserverIdentity(NewObserver("Ravi", ""))
	_, ok = searching.JoinCode()
	assert.False(t, ok)

	linked := ObserverIdentity(NewObserver("Ravi", "AB12CD"))
	code, ok = linked.JoinCode()
	assert.True(t, ok)
	assert.Equal(t, "AB12CD", code)
	assert.Equal(t, linked.Observer.ID, linked.ID())
}

func TestPresenceEventValidate(t *testing.T) {
	ev := PresenceEvent{Code: "AB12CD", Lat: 10, Lng: 20, Status: StatusSafe}
	require.NoError(t, ev.Validate())

	ev.Lat = 91
	assert.ErrorIs(t, ev.Validate(), ErrInvalidCoordinate)

	ev.Lat = math.NaN()
	assert.ErrorIs(t, ev.Validate(), ErrInvalidCoordinate)

	ev = PresenceEvent{Code: "bad code", Lat: 1, Lng: 1}
	assert.ErrorIs(t, ev.Validate(), ErrInvalidEventCode)
}

func TestMapsLink(t *testing.T) {
	assert.Equal(t, "https://maps.google.com/?q=12.9716,77.5946", Point{Lat: 12.9716, Lng: 77.5946}.MapsLink())
	assert.Equal(t, "https://maps.google.com/?q=10,20", Point{Lat: 10, Lng: 20}.MapsLink())
}

func TestMessageDecode(t *testing.T) {
	msg := JoinRoomMessage("AB12CD")
	assert.Equal(t, TypeJoinRoom, msg.Type)

	var join JoinRoom
	require.NoError(t, msg.Decode(&join))
	assert.Equal(t, "AB12CD", join.Code)

	var empty JoinRoom
	assert.ErrorIs(t, Message{Type: TypeJoinRoom}.Decode(&empty), ErrEmptyPayload)
}

func TestConnectionEnqueueAfterClose(t *testing.T) {
	conn := NewConnection(ObserverIdentity(NewObserver("Ravi", "AB12CD")), 1)

	assert.True(t, conn.Enqueue(RoomJoinedMessage("hi")))
	assert.False(t, conn.Enqueue(RoomJoinedMessage("full")))

	conn.Close()
	conn.Close()
	assert.False(t, conn.Enqueue(RoomJoinedMessage("closed")))
	assert.Equal(t, ConnStatusDisconnected, conn.Status())
}

func TestInternationalContact(t *testing.T) {
	assert.Equal(t, "+919876543210", InternationalContact("9876543210", ""))
	assert.Equal(t, "+447911123456", InternationalContact("+447911123456", "+91"))
	assert.Equal(t, "+19876543210", InternationalContact("98765 43210", "+1"))
	assert.Equal(t, "", InternationalContact("  ", "+91"))
}
