package consumers

import (
	"testing"

	"booknow/internal/models"

	"github.com/nats-io/stan.go"
	"github.com/nats-io/stan.go/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	shows []string
	seats []models.Seat
}

func (r *recordingBroadcaster) BroadcastSeat(showID string, seat models.Seat) int {
	r.shows = append(r.shows, showID)
	r.seats = append(r.seats, seat)
	return 1
}

func msg(data string) *stan.Msg {
	return &stan.Msg{MsgProto: pb.MsgProto{Data: []byte(data), Sequence: 7}}
}

func TestDecodeSeatStatusChanged(t *testing.T) {
	event, err := decodeSeatStatusChanged([]byte(`{"show_id":"show-1","seat":{"seatId":"A5","status":"BOOKED"}}`))
	require.NoError(t, err)
	assert.Equal(t, "show-1", event.ShowID)
	assert.Equal(t, "A5", event.Seat.SeatID)
	assert.Equal(t, models.SeatBooked, event.Seat.Status)

	_, err = decodeSeatStatusChanged([]byte(`{"show_id":"show-1","seat":{}}`))
	assert.Error(t, err)

	_, err = decodeSeatStatusChanged([]byte(`not json`))
	assert.Error(t, err)
}

func TestHandleSeatStatusChanged(t *testing.T) {
	rec := &recordingBroadcaster{}
	h := NewHandlers(rec)

	h.HandleSeatStatusChanged(msg(`{"show_id":"show-1","seat":{"seatId":"A5","status":"LOCKED","lockedBy":"u2"}}`))
	h.HandleSeatStatusChanged(msg(`{"broken"`))

	require.Len(t, rec.seats, 1)
	assert.Equal(t, "show-1", rec.shows[0])
	assert.Equal(t, "u2", rec.seats[0].LockedBy)
}
