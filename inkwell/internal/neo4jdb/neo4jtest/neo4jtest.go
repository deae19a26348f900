// Package neo4jtest starts disposable Neo4j containers for integration tests.
package neo4jtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"

	"inkwell.dev/inkwell/internal/neo4jdb"
)

// EnvIntegrationTests must be set for tests requiring a Neo4j container to run.
const EnvIntegrationTests = "ENABLE_NEO4J_INTEGRATION_TESTS"

// Defaults for the started container.
const (
	DefaultImage    = "neo4j:5"
	DefaultUsername = "neo4j"
	DefaultPassword = "inkwell-test-password"

	boltPort     = nat.Port("7687/tcp")
	startTimeout = 2 * time.Minute
)

// Instance of a running Neo4j container.
type Instance struct {
	URI      string
	Username string
	Password string

	client      client.APIClient
	containerID string
}

// Start a Neo4j container, skipping the test unless integration tests are enabled.
// The container is removed when the test completes.
func Start(t *testing.T) *Instance {
	t.Helper()
	if os.Getenv(EnvIntegrationTests) == "" {
		t.Skipf("set %s to run tests against a neo4j container", EnvIntegrationTests)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	require.NoError(t, err, "failed to create docker client")

	inst, err := start(ctx, cli)
	if inst != nil {
		t.Cleanup(inst.remove)
	}
	require.NoError(t, err)
	return inst
}

func start(ctx context.Context, cli client.APIClient) (*Instance, error) {
	slog.InfoContext(ctx, "pulling docker image", "image", DefaultImage)
	pullReader, err := cli.ImagePull(ctx, DefaultImage, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image %q: %w", DefaultImage, err)
	}
	if _, err := io.Copy(io.Discard, pullReader); err != nil {
		pullReader.Close()
		return nil, fmt.Errorf("error reading image pull output: %w", err)
	}
	pullReader.Close()

	resp, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image:        DefaultImage,
			Env:          []string{fmt.Sprintf("NEO4J_AUTH=%s/%s", DefaultUsername, DefaultPassword)},
			ExposedPorts: nat.PortSet{boltPort: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				boltPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
			},
		},
		nil, // networking config
		nil, // platform
		"",  // container name (auto-generated)
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	inst := &Instance{
		Username:    DefaultUsername,
		Password:    DefaultPassword,
		client:      cli,
		containerID: resp.ID,
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return inst, fmt.Errorf("failed to start container: %w", err)
	}
	info, err := cli.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return inst, fmt.Errorf("failed to inspect container: %w", err)
	}
	bindings := info.NetworkSettings.Ports[boltPort]
	if len(bindings) == 0 {
		return inst, fmt.Errorf("container %s has no binding for %s", resp.ID, boltPort)
	}
	inst.URI = fmt.Sprintf("bolt://127.0.0.1:%s", bindings[0].HostPort)
	slog.InfoContext(ctx, "container started", "container_id", resp.ID, "uri", inst.URI)

	return inst, inst.waitReady(ctx)
}

// waitReady polls until the database accepts authenticated connections.
func (inst *Instance) waitReady(ctx context.Context) error {
	db, err := neo4jdb.Open(inst.URI, inst.Username, inst.Password)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		err := db.VerifyConnectivity(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("neo4j did not become ready: %w", err)
		case <-ticker.C:
		}
	}
}

// Open a Database connected to the instance, closed when the test completes.
func (inst *Instance) Open(t *testing.T) *neo4jdb.Database {
	t.Helper()
	db, err := neo4jdb.Open(inst.URI, inst.Username, inst.Password)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := db.Close(context.Background()); err != nil {
			t.Logf("failed to close neo4j driver: %v", err)
		}
	})
	return db
}

func (inst *Instance) remove() {
	err := inst.client.ContainerRemove(context.Background(), inst.containerID, container.RemoveOptions{Force: true})
	if err != nil {
		slog.Warn("failed to remove container", "container_id", inst.containerID, "error", err)
	}
}
