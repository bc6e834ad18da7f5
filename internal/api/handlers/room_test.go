package handlers_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/jovywahba/jovnumbergames/internal/api/handlers"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/session"
	"github.com/jovywahba/jovnumbergames/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinRoom(t *testing.T, ts *testutil.TestServer, roomID, token string) *http.Response {
	t.Helper()

	req := testutil.CreateAuthenticatedRequest(t, "POST", ts.APIURL("/rooms/"+roomID+"/join"), nil, token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRoomHandler_Join(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, aliceToken := testutil.NewUserBuilder().WithDisplayName("alice").BuildAndAuthenticate(t, ts)
	_, bobToken := testutil.NewUserBuilder().WithDisplayName("bob").BuildAndAuthenticate(t, ts)
	_, carolToken := testutil.NewUserBuilder().WithDisplayName("carol").BuildAndAuthenticate(t, ts)

	tests := []struct {
		name           string
		token          string
		expectedStatus int
		expectedSeat   domain.Seat
		expectedRoom   domain.RoomStatus
		expectedRole   session.Role
	}{
		{
			name:           "first player opens the room",
			token:          aliceToken,
			expectedStatus: http.StatusOK,
			expectedSeat:   domain.SeatP1,
			expectedRoom:   domain.RoomStatusWaiting,
			expectedRole:   session.RoleP1,
		},
		{
			name:           "second player fills the room",
			token:          bobToken,
			expectedStatus: http.StatusOK,
			expectedSeat:   domain.SeatP2,
			expectedRoom:   domain.RoomStatusIdle,
			expectedRole:   session.RoleP2,
		},
		{
			name:           "third player watches",
			token:          carolToken,
			expectedStatus: http.StatusOK,
			expectedSeat:   domain.SeatNone,
			expectedRoom:   domain.RoomStatusIdle,
			expectedRole:   session.RoleSpectator,
		},
		{
			name:           "unauthorized",
			token:          "",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := joinRoom(t, ts, "table-1", tt.token)
			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var result handlers.JoinRoomResponse
			testutil.AssertJSONResponse(t, resp, &result)
			assert.Equal(t, tt.expectedSeat, result.YourSeat)
			assert.Equal(t, tt.expectedRole, result.View.Role)
			testutil.AssertRoomStatus(t, result.View, tt.expectedRoom)
			assert.Equal(t, "table-1", result.View.RoomID)
			assert.Equal(t, 3, result.View.CodeLen)
		})
	}
}

func TestRoomHandler_JoinTruncatesID(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	resp := joinRoom(t, ts, strings.Repeat("x", 30), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result handlers.JoinRoomResponse
	testutil.AssertJSONResponse(t, resp, &result)
	assert.Equal(t, strings.Repeat("x", 24), result.View.RoomID)
}

func TestRoomHandler_JoinBlankID(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	resp := joinRoom(t, ts, "%20%20", token)
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, domain.ErrInvalidRoomID.Error())
}

func TestRoomHandler_JoinClosedRoom(t *testing.T) {
	ts := testutil.NewTestServer(t)
	alice, aliceToken := testutil.NewUserBuilder().WithDisplayName("alice").BuildAndAuthenticate(t, ts)
	_, bobToken := testutil.NewUserBuilder().WithDisplayName("bob").BuildAndAuthenticate(t, ts)

	resp := joinRoom(t, ts, "closing", aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err := ts.Services.Rooms.Leave(context.Background(), "closing", alice.ID)
	require.NoError(t, err)

	resp = joinRoom(t, ts, "closing", bobToken)
	testutil.AssertErrorResponse(t, resp, http.StatusGone, "Room is closed")

	// The creator may reopen it
	resp = joinRoom(t, ts, "closing", aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result handlers.JoinRoomResponse
	testutil.AssertJSONResponse(t, resp, &result)
	testutil.AssertRoomStatus(t, result.View, domain.RoomStatusWaiting)
}

func TestRoomHandler_Get(t *testing.T) {
	ts := testutil.NewTestServer(t)
	alice, aliceToken := testutil.NewUserBuilder().WithDisplayName("alice").BuildAndAuthenticate(t, ts)
	bob, bobToken := testutil.NewUserBuilder().WithDisplayName("bob").BuildAndAuthenticate(t, ts)
	testutil.SeatPlayers(t, ts, "lookup", alice, bob)

	ctx := context.Background()
	require.NoError(t, ts.Services.Rooms.SetSecret(ctx, "lookup", alice.ID, "123"))

	tests := []struct {
		name           string
		path           string
		token          string
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name:           "owner sees own secret",
			path:           "/rooms/lookup",
			token:          aliceToken,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var view session.View
				testutil.AssertJSONResponse(t, resp, &view)
				assert.Equal(t, session.RoleP1, view.Role)
				assert.True(t, view.IsAdmin)
				assert.Equal(t, "123", view.P1.Secret)
				assert.True(t, view.P1.Ready)
				assert.Equal(t, "alice", view.P1.Name)
				assert.Equal(t, "bob", view.P2.Name)
			},
		},
		{
			name:           "opponent does not",
			path:           "/rooms/lookup",
			token:          bobToken,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var view session.View
				testutil.AssertJSONResponse(t, resp, &view)
				assert.Equal(t, session.RoleP2, view.Role)
				assert.Empty(t, view.P1.Secret)
				assert.True(t, view.CanSetSecret)
			},
		},
		{
			name:           "missing room",
			path:           "/rooms/nowhere",
			token:          aliceToken,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unauthorized",
			path:           "/rooms/lookup",
			token:          "",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.CreateAuthenticatedRequest(t, "GET", ts.APIURL(tt.path), nil, tt.token)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			testutil.AssertStatusCode(t, resp, tt.expectedStatus)
			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}
