package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/api"
	"github/chapool/ledger-provider/internal/test"
	"github/chapool/ledger-provider/internal/util/command"
)

func TestWithServer(t *testing.T) {
	node := test.NewDevnet(t)
	cfg := test.NewTestConfig(t, node)

	var testError = errors.New("test error")

	resultErr := command.WithServer(t.Context(), cfg, func(ctx context.Context, s *api.Server) error {
		session, err := s.Devices.Open(ctx)
		require.NoError(t, err)
		assert.Equal(t, test.TestAddress, session.Address())

		chainID, err := s.Network.ChainID(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), chainID.Int64())

		return testError
	})

	assert.Equal(t, testError, resultErr)
}

func TestWithServerInitFailure(t *testing.T) {
	node := test.NewDevnet(t)
	cfg := test.NewTestConfig(t, node)
	cfg.Device.Mnemonic = "not a mnemonic"

	called := false
	err := command.WithServer(t.Context(), cfg, func(context.Context, *api.Server) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
}

func TestNewSubcommandGroup(t *testing.T) {
	child := &cobra.Command{Use: "child", Run: func(*cobra.Command, []string) {}}
	group := command.NewSubcommandGroup("group", child)

	assert.Equal(t, "group", group.Use)
	require.Len(t, group.Commands(), 1)
	assert.Equal(t, "child", group.Commands()[0].Use)
}
