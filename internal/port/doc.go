// Package port inspects the host's TCP listening sockets.
//
// The Scanner answers one question: is anything listening on this TCP
// port right now? It reads the kernel socket table (/proc/net/tcp and
// /proc/net/tcp6, parsed by github.com/prometheus/procfs) and keeps only
// sockets in the LISTEN state whose local port equals the requested port
// exactly. Where the socket table is unavailable (non-Linux hosts,
// sandboxes without /proc) it falls back to a loopback connect probe.
//
// Wait layers an optional polling loop with exponential backoff on top of
// a single check, for services that take a while to bind. With a zero
// timeout it performs exactly one check.
package port
