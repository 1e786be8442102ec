package rebalance_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/test"
	"github.com/escion333/autoUSD-sub000/internal/types"
	"github.com/escion333/autoUSD-sub000/internal/vault/rebalance"
)

func TestGetPreviewNoPositions(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "GET", "/api/v1/rebalance/preview", nil, nil)
		require.Equal(t, http.StatusOK, res.Code)

		var response types.RebalanceDecisionResponse
		test.ParseResponseBody(t, res, &response)
		assert.False(t, response.Actionable)
		assert.Equal(t, rebalance.ReasonTooFewPositions, response.Reason)
	})
}

func TestPostExecuteRequiresKeeper(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "POST", "/api/v1/rebalance/execute", nil, nil)
		assert.Equal(t, http.StatusForbidden, res.Code)
	})
}

func TestGetStatusEmpty(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "GET", "/api/v1/rebalance/status", nil, nil)
		require.Equal(t, http.StatusOK, res.Code)

		var response types.RebalanceStatusResponse
		test.ParseResponseBody(t, res, &response)
		assert.False(t, response.Executing)
		assert.Zero(t, response.LastRebalanceAt)
		assert.Zero(t, response.ExecutionsInWindow)
	})
}
