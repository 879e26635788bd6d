package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/redstring-sub011/pkg/mcpshim"
)

func newMCPTestServer() *Server {
	s := newTestServer()
	s.mcp = mcpshim.New(
		[]mcpshim.Tool{{Name: "verify_state", Description: "verify"}},
		map[string]mcpshim.ToolHandler{
			"verify_state": func(map[string]interface{}) (interface{}, error) { return "ok", nil },
		},
	)
	return s
}

func TestHandleMCPRequestDispatchesToolsList(t *testing.T) {
	s := newMCPTestServer()
	rec := doJSON(t, s, s.handleMCPRequest, http.MethodPost, "/api/mcp/request",
		mcpshim.Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/list"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mcpshim.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
}

func TestHandleMCPRequestUnknownMethodStillReturns200(t *testing.T) {
	s := newMCPTestServer()
	rec := doJSON(t, s, s.handleMCPRequest, http.MethodPost, "/api/mcp/request",
		mcpshim.Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "bogus"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mcpshim.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpshim.CodeMethodNotFound, resp.Error.Code)
}
