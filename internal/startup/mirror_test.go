package startup

import (
	"context"
	"testing"

	"github.com/roomchat/internal/config"
	"github.com/roomchat/internal/mirror"
	"github.com/stretchr/testify/require"
)

func TestConnectMirror(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	remote, err := ConnectMirror(ctx, config.MirrorConfig{Driver: "none"})
	req.NoError(err)
	req.Nil(remote)

	remote, err = ConnectMirror(ctx, config.MirrorConfig{Driver: "memory"})
	req.NoError(err)
	req.IsType(&mirror.MemoryRemote{}, remote)

	_, err = ConnectMirror(ctx, config.MirrorConfig{Driver: "sqlite"})
	req.Error(err)
}
