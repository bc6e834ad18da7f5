package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v and verifies success
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse verifies error response with expected status and message
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	// Error responses are plain text in this API
	assert.Contains(t, string(body), expectedMessage, "error message mismatch")
}

// AssertRoomStatus verifies the status a view reports
func AssertRoomStatus(t *testing.T, v session.View, expected domain.RoomStatus) {
	t.Helper()
	assert.Equal(t, expected, v.Status, "unexpected room status")
}

// AssertMoveCount verifies how many guesses each board shows
func AssertMoveCount(t *testing.T, v session.View, p1Moves, p2Moves int) {
	t.Helper()
	assert.Len(t, v.P1.Moves, p1Moves, "unexpected p1 move count")
	assert.Len(t, v.P2.Moves, p2Moves, "unexpected p2 move count")
}
