package mcpshim

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShim() *Shim {
	tools := []Tool{
		{Name: "verify_state", Description: "Verify bridge state"},
		{Name: "list_available_graphs", Description: "List graphs"},
		{Name: "search_nodes", Description: "Search nodes"},
	}
	handlers := map[string]ToolHandler{
		"verify_state": func(args map[string]interface{}) (interface{}, error) {
			return "ok", nil
		},
		"list_available_graphs": func(args map[string]interface{}) (interface{}, error) {
			return []string{"g1"}, nil
		},
		"search_nodes": func(args map[string]interface{}) (interface{}, error) {
			if args["q"] == nil {
				return nil, errors.New("missing q")
			}
			return "found", nil
		},
	}
	return New(tools, handlers)
}

func TestInitializeReturnsCapabilities(t *testing.T) {
	s := testShim()
	resp := s.Handle(Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"})
	require.Nil(t, resp.Error)
	assert.NotNil(t, resp.Result)
}

func TestToolsListAdvertisesFixedToolSet(t *testing.T) {
	s := testShim()
	resp := s.Handle(Request{ID: json.RawMessage(`1`), Method: "tools/list"})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	tools, ok := result["tools"].([]Tool)
	require.True(t, ok)
	assert.Len(t, tools, 3)
}

func TestToolsCallDispatchesToHandler(t *testing.T) {
	s := testShim()
	params, _ := json.Marshal(map[string]interface{}{"name": "verify_state", "arguments": map[string]interface{}{}})
	resp := s.Handle(Request{ID: json.RawMessage(`1`), Method: "tools/call", Params: params})
	assert.Nil(t, resp.Error)
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s := testShim()
	resp := s.Handle(Request{ID: json.RawMessage(`1`), Method: "bogus"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestUnknownToolReturnsMethodNotFound(t *testing.T) {
	s := testShim()
	params, _ := json.Marshal(map[string]interface{}{"name": "delete_universe"})
	resp := s.Handle(Request{ID: json.RawMessage(`1`), Method: "tools/call", Params: params})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestMissingNameReturnsInvalidParams(t *testing.T) {
	s := testShim()
	params, _ := json.Marshal(map[string]interface{}{})
	resp := s.Handle(Request{ID: json.RawMessage(`1`), Method: "tools/call", Params: params})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestHandlerErrorReturnsServerError(t *testing.T) {
	s := testShim()
	params, _ := json.Marshal(map[string]interface{}{"name": "search_nodes", "arguments": map[string]interface{}{}})
	resp := s.Handle(Request{ID: json.RawMessage(`1`), Method: "tools/call", Params: params})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeServerError, resp.Error.Code)
}
