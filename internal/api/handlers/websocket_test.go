package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/session"
	"github.com/jovywahba/jovnumbergames/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wsTimeout = 5 * time.Second

func statusIs(status domain.RoomStatus) func(session.View) bool {
	return func(v session.View) bool { return v.Status == status }
}

func TestWebSocketHandler_RequiresToken(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp, err := http.Get(ts.APIURL("/ws"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp2, err := http.Get(ts.APIURL("/ws?token=bogus"))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestWebSocketHandler_ProtocolErrors(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	client := testutil.NewWSClient(t, ts.WebSocketURL(token))

	client.SendRaw([]byte("not json"))
	client.ExpectErrorWithCode("INVALID_MESSAGE", wsTimeout)

	client.SendRaw([]byte(`{"type":"DANCE"}`))
	client.ExpectErrorWithCode("UNKNOWN_MESSAGE", wsTimeout)

	client.SubmitGuess("123")
	client.ExpectErrorWithCode(session.CodeNotInRoom, wsTimeout)
}

func TestWebSocketHandler_StaleActionIsSilent(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().WithDisplayName("alice").BuildAndAuthenticate(t, ts)

	alice := testutil.NewWSClient(t, ts.WebSocketURL(token))
	alice.JoinRoom("ws-quiet")
	alice.ExpectView(statusIs(domain.RoomStatusWaiting), wsTimeout)
	alice.DrainMessages()

	// nothing to reset while waiting for an opponent
	alice.Reset()
	alice.ExpectNoMessage(300 * time.Millisecond)
}

func TestWebSocketHandler_FullMatch(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, aliceToken := testutil.NewUserBuilder().WithDisplayName("alice").BuildAndAuthenticate(t, ts)
	_, bobToken := testutil.NewUserBuilder().WithDisplayName("bob").BuildAndAuthenticate(t, ts)

	alice := testutil.NewWSClient(t, ts.WebSocketURL(aliceToken))
	alice.JoinRoom("ws-match")
	view := alice.ExpectView(statusIs(domain.RoomStatusWaiting), wsTimeout)
	assert.Equal(t, session.RoleP1, view.Role)
	assert.True(t, view.IsAdmin)

	bob := testutil.NewWSClient(t, ts.WebSocketURL(bobToken))
	bob.JoinRoom("ws-match")
	view = bob.ExpectView(statusIs(domain.RoomStatusIdle), wsTimeout)
	assert.Equal(t, session.RoleP2, view.Role)
	alice.ExpectView(statusIs(domain.RoomStatusIdle), wsTimeout)

	alice.SetSecret("12")
	alice.ExpectErrorWithCode(session.CodeInvalidCode, wsTimeout)

	alice.SetSecret("123")
	bob.SetSecret("489")

	// Player one's session counts down and starts play on its own
	view = alice.ExpectView(statusIs(domain.RoomStatusPlaying), wsTimeout)
	assert.Equal(t, domain.SeatP1, view.Turn)
	assert.True(t, view.CanGuess)
	assert.True(t, view.IsDriver)
	bob.ExpectView(statusIs(domain.RoomStatusPlaying), wsTimeout)

	tick := bob.ExpectTimerTick(wsTimeout)
	assert.Equal(t, domain.SeatP1, tick.Turn)
	assert.LessOrEqual(t, tick.SecondsLeft, 20)

	bob.SubmitGuess("123")
	bob.ExpectErrorWithCode(session.CodeNotYourTurn, wsTimeout)

	alice.SubmitGuess("489")
	view = bob.ExpectView(func(v session.View) bool {
		return v.Status == domain.RoomStatusFinished && v.ResultsLogged
	}, wsTimeout)
	assert.Equal(t, domain.WinnerP1, view.Winner)
	assert.Equal(t, "alice", view.WinnerName)
	assert.Equal(t, "123", view.P1.Secret)
	testutil.AssertMoveCount(t, view, 1, 0)

	require.NotNil(t, view.P1.UserID)
	stats, err := ts.Services.Profiles.Stats(t.Context(), *view.P1.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalWins)
}

func TestWebSocketHandler_LeaveClosesRoom(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, aliceToken := testutil.NewUserBuilder().WithDisplayName("alice").BuildAndAuthenticate(t, ts)
	_, bobToken := testutil.NewUserBuilder().WithDisplayName("bob").BuildAndAuthenticate(t, ts)

	alice := testutil.NewWSClient(t, ts.WebSocketURL(aliceToken))
	alice.JoinRoom("ws-leave")
	alice.ExpectView(statusIs(domain.RoomStatusWaiting), wsTimeout)

	bob := testutil.NewWSClient(t, ts.WebSocketURL(bobToken))
	bob.JoinRoom("ws-leave")
	bob.ExpectView(statusIs(domain.RoomStatusIdle), wsTimeout)

	alice.Leave()
	assert.Equal(t, session.ReasonLeft, alice.ExpectRoomClosed(wsTimeout).Reason)
	assert.Equal(t, session.ReasonClosed, bob.ExpectRoomClosed(wsTimeout).Reason)

	// Only the creator may reopen it
	bob.JoinRoom("ws-leave")
	assert.Equal(t, session.ReasonClosed, bob.ExpectRoomClosed(wsTimeout).Reason)
}
