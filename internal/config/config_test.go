package config

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestValidateResolvesMagicFromNetwork(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Network = "testnet3"
	require.NoError(t, Validate(&cfg))
	require.Equal(t, wire.TestNet3, cfg.Magic())
}

func TestValidateRejectsUnknownNetwork(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Network = "not-a-network"
	require.Error(t, Validate(&cfg))
}

func TestValidateRejectsInvertedProtocolBounds(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ProtocolMinimum = cfg.ProtocolMaximum + 1
	require.Error(t, Validate(&cfg))
}

func TestValidateRejectsZeroMaxPayload(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxPayload = 0
	require.Error(t, Validate(&cfg))
}

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, Validate(&cfg))
}
