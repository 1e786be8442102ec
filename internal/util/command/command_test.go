package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/test"
	"github.com/escion333/autoUSD-sub000/internal/util/command"
)

func TestWithServer(t *testing.T) {
	ctx := context.Background()

	var testError = errors.New("test error")

	cfg := test.DefaultTestConfig()
	cfg.Logger.PrettyPrintConsole = false

	resultErr := command.WithServer(ctx, cfg, func(ctx context.Context, s *api.Server) error {
		var one int
		err := s.DB.QueryRowContext(ctx, "SELECT 1;").Scan(&one)
		require.NoError(t, err)

		assert.Equal(t, 1, one)

		return testError
	})

	assert.Equal(t, testError, resultErr)
}
