package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat-presence/internal/server"
	"github.com/Tyrowin/gochat-presence/test/testhelpers"
)

func TestHealthEndpoint(t *testing.T) {
	req := require.New(t)
	stack := testhelpers.NewStack(t, nil)

	resp, err := http.Get(stack.Server.URL + "/health")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	req.Equal(http.StatusOK, resp.StatusCode)
	var body server.HealthStatus
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal("ok", body.Status)
	req.False(body.Timestamp.IsZero())
}

func TestIndexServesChatPage(t *testing.T) {
	req := require.New(t)
	stack := testhelpers.NewStack(t, nil)

	resp, err := http.Get(stack.Server.URL + "/")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	req.Equal(http.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.Contains(string(page), "chat-message")
}
