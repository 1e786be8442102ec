package vault_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/test"
	"github.com/escion333/autoUSD-sub000/internal/types"
)

const remoteHex = "0x00000000000000000000000000000000000000a0"

func registerTestPosition(t *testing.T, s *api.Server, domain uint32) {
	t.Helper()

	res := test.PerformRequest(t, s, "POST", "/api/v1/vault/positions", types.PostRegisterPositionPayload{
		Domain:        domain,
		RemoteAddress: remoteHex,
	}, test.HeadersWithAuth(t, test.AdminToken))
	require.Equal(t, http.StatusCreated, res.Code)
}

func TestPostDeploy(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		registerTestPosition(t, s, 10)

		res := test.PerformRequest(t, s, "POST", "/api/v1/vault/deposit", types.PostDepositPayload{Amount: "5000"}, nil)
		require.Equal(t, http.StatusOK, res.Code)

		res = test.PerformRequest(t, s, "POST", "/api/v1/vault/deploy", types.PostDeployPayload{
			Domain: 10,
			Amount: "3000",
		}, test.HeadersWithAuth(t, test.KeeperToken))
		require.Equal(t, http.StatusAccepted, res.Code)

		var response types.CorrelationResponse
		test.ParseResponseBody(t, res, &response)
		assert.NotEmpty(t, response.CorrelationID)

		res = test.PerformRequest(t, s, "GET", "/api/v1/vault", nil, nil)
		require.Equal(t, http.StatusOK, res.Code)

		var overview types.OverviewResponse
		test.ParseResponseBody(t, res, &overview)
		assert.Equal(t, "2000", overview.IdleBalance)
		assert.Equal(t, "3000", overview.DeployedBalance)
	})
}

func TestPostDeployRequiresKeeper(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		registerTestPosition(t, s, 10)

		res := test.PerformRequest(t, s, "POST", "/api/v1/vault/deposit", types.PostDepositPayload{Amount: "5000"}, nil)
		require.Equal(t, http.StatusOK, res.Code)

		// the anonymous caller acts as an unprivileged user
		res = test.PerformRequest(t, s, "POST", "/api/v1/vault/deploy", types.PostDeployPayload{
			Domain: 10,
			Amount: "3000",
		}, nil)
		assert.Equal(t, http.StatusForbidden, res.Code)
	})
}

func TestPostDeployUnknownDomain(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "POST", "/api/v1/vault/deposit", types.PostDepositPayload{Amount: "5000"}, nil)
		require.Equal(t, http.StatusOK, res.Code)

		res = test.PerformRequest(t, s, "POST", "/api/v1/vault/deploy", types.PostDeployPayload{
			Domain: 99,
			Amount: "3000",
		}, test.HeadersWithAuth(t, test.KeeperToken))
		assert.Equal(t, http.StatusNotFound, res.Code)
	})
}
