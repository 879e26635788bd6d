package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

func doQuery(t *testing.T, s *Server, handler func(*echo.Context) error, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	require.NoError(t, handler(c))
	return rec
}

func TestHandleSearchRequiresQuery(t *testing.T) {
	s := newTestServer()
	rec := doQuery(t, s, s.handleSearch, "/search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearchFindsMatchingGraph(t *testing.T) {
	s := newTestServer()
	s.setStore(graphmodel.ProjectedStore{
		Graphs: []graphmodel.Graph{{ID: "g1", Name: "Project Atlas"}},
	})

	rec := doQuery(t, s, s.handleSearch, "/search?q=atlas")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count   int `json:"count"`
		Results []struct {
			Kind string `json:"kind"`
			Name string `json:"name"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "graph", resp.Results[0].Kind)
	assert.Equal(t, "Project Atlas", resp.Results[0].Name)
}

func TestHandleSearchEmptyStoreReturnsEmptyResults(t *testing.T) {
	s := newTestServer()
	rec := doQuery(t, s, s.handleSearch, "/search?q=anything")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestHandleSearchInvalidRegexIsBadRequest(t *testing.T) {
	s := newTestServer()
	rec := doQuery(t, s, s.handleSearch, "/search?q=%5B%5B&regex=true")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
