package docker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// shortIDLength matches the ID width printed by `docker ps`.
const shortIDLength = 12

// ContainerLister is the subset of the Docker API used by FindPublishers.
// *Client and *client.Client both satisfy it.
type ContainerLister interface {
	ContainerList(ctx context.Context, opts container.ListOptions) ([]container.Summary, error)
}

// FindPublishers returns the running containers that publish port on the
// host, sorted by container name.
//
// The daemon is asked to filter by published port and running status;
// the result is filtered again locally because older daemons ignore
// unknown filters.
func FindPublishers(ctx context.Context, lister ContainerLister, port int) ([]model.Publisher, error) {
	if err := model.ValidatePort(port); err != nil {
		return nil, err
	}

	containers, err := lister.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("status", "running"),
			filters.Arg("publish", strconv.Itoa(port)),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list Docker containers: %w", err)
	}
	return filterPublishers(containers, port), nil
}

// filterPublishers maps containers to one Publisher per container that has
// a TCP binding whose public port equals port. Bindings repeated across
// address families (0.0.0.0 and ::) collapse into a single entry.
func filterPublishers(containers []container.Summary, port int) []model.Publisher {
	result := make([]model.Publisher, 0)

	for _, c := range containers {
		if c.State != "" && c.State != "running" {
			continue
		}
		for _, p := range c.Ports {
			if int(p.PublicPort) != port {
				continue
			}
			if p.Type != "" && p.Type != "tcp" {
				continue
			}
			result = append(result, model.Publisher{
				ContainerID:   shortID(c.ID),
				ContainerName: containerName(c.Names),
				Image:         c.Image,
				HostPort:      int(p.PublicPort),
				ContainerPort: int(p.PrivatePort),
			})
			break
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ContainerName < result[j].ContainerName
	})
	return result
}

// containerName returns the first name without Docker's leading "/".
func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

// Lookup connects to the local Docker daemon and runs FindPublishers.
// An absent or stopped daemon is reported as an error.
func Lookup(ctx context.Context, port int) ([]model.Publisher, error) {
	c, err := NewClient()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	return FindPublishers(ctx, c, port)
}
