// Package docker looks up which running containers publish a host port.
//
// The lookup is diagnostic only. When the port check fails, knowing that a
// container maps the port (or that none does) tells the operator whether
// to look at Docker or at a host process. The Docker socket is detected
// automatically across Linux, macOS and Windows, and DOCKER_HOST wins when
// set.
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with API version negotiation enabled.
package docker
