package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pilehq/pilebox/internal/client/config"
)

func TestDaemonCommand_FlagsAndDefaults(t *testing.T) {
	cmd := newDaemonCmd()

	httpAddr := cmd.Flags().Lookup("http-addr")
	require.NotNil(t, httpAddr)
	require.Equal(t, "a", httpAddr.Shorthand)
	require.Equal(t, config.DefaultControlAddr, httpAddr.DefValue)

	httpToken := cmd.Flags().Lookup("http-token")
	require.NotNil(t, httpToken)
	require.Equal(t, "t", httpToken.Shorthand)
	require.Equal(t, "", httpToken.DefValue)
}

func TestSyncCommand_FlagsAndDefaults(t *testing.T) {
	cmd := newSyncCmd()

	mode := cmd.Flags().Lookup("mode")
	require.NotNil(t, mode)
	require.Equal(t, "m", mode.Shorthand)
	require.Equal(t, "both", mode.DefValue)
}

func TestLinkCommand_FlagsAndDefaults(t *testing.T) {
	cmd := newLinkCmd()

	remote := cmd.Flags().Lookup("remote")
	require.NotNil(t, remote)
	require.Equal(t, "r", remote.Shorthand)
	require.Equal(t, "", remote.DefValue)
}
