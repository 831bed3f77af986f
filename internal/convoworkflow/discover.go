package convoworkflow

import (
	"context"
	"fmt"

	"github.com/relayrun/convorch/internal/mcppool"
	"github.com/relayrun/convorch/internal/toolspec"
)

// DiscoverRemoteTools performs the tools/list round trip against endpoint
// (via pool's pooled session, which has already done the "initialize"
// handshake) and maps the tool-server's catalog into registry descriptors.
// It is I/O and must only ever be called from cmd/worker at process
// startup, never from inside the workflow coroutine (§4.2, §4.3): the
// workflow itself only ever sees the resulting descriptors, passed in
// through CoreConfig.RemoteToolDescriptors.
func DiscoverRemoteTools(ctx context.Context, pool *mcppool.Pool, endpoint, serverNamespace string) ([]toolspec.Descriptor, error) {
	infos, err := pool.ListTools(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("convoworkflow: discover remote tools at %s: %w", endpoint, err)
	}
	out := make([]toolspec.Descriptor, 0, len(infos))
	for _, info := range infos {
		out = append(out, toolspec.Descriptor{
			Name:            info.Name,
			Description:     info.Description,
			ArgsSchema:      info.InputSchema,
			Kind:            toolspec.Remote,
			ServerToolName:  info.Name,
			ServerNamespace: serverNamespace,
		})
	}
	return out, nil
}
