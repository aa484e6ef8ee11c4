package port

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// tcpListen is the kernel's TCP_LISTEN state as printed in the "st"
// column of /proc/net/tcp (include/net/tcp_states.h).
const tcpListen = 0x0A

// defaultDialTimeout bounds each loopback probe of the fallback method.
// Loopback connects either succeed or get refused almost instantly, so a
// short timeout only matters for filtered ports.
const defaultDialTimeout = 500 * time.Millisecond

// defaultDialHosts are probed in order by the fallback method.
var defaultDialHosts = []string{"127.0.0.1", "::1"}

// ErrSocketTableUnavailable is returned by Listeners when /proc cannot be
// read on this host.
var ErrSocketTableUnavailable = errors.New("kernel socket table unavailable")

// Scanner checks whether a TCP port is in the listening state.
//
// It prefers the kernel socket table because that is what netstat and ss
// read: it sees listeners on any local address, never opens a connection
// to the service, and never binds the port itself. Probing by binding
// (net.Listen) would briefly steal the port from a service that is just
// starting, so it is not used.
type Scanner struct {
	// proc is the procfs handle; nil when the socket table is unavailable.
	proc *procfs.FS

	// procErr records why proc is nil, for logging.
	procErr error

	dialTimeout time.Duration
	dialHosts   []string

	log *zap.Logger
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithProcFS reads the socket table from a procfs mounted at mountPoint
// instead of /proc. Tests point this at a fixture tree.
func WithProcFS(mountPoint string) Option {
	return func(s *Scanner) {
		fsys, err := procfs.NewFS(mountPoint)
		if err != nil {
			s.proc, s.procErr = nil, err
			return
		}
		s.proc, s.procErr = &fsys, nil
	}
}

// WithoutProcFS forces the loopback dial fallback.
func WithoutProcFS() Option {
	return func(s *Scanner) {
		s.proc, s.procErr = nil, ErrSocketTableUnavailable
	}
}

// WithDialTimeout sets the per-host timeout of the dial fallback.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Scanner) { s.dialTimeout = d }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scanner) { s.log = log }
}

// NewScanner creates a Scanner reading the default /proc mount.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		dialTimeout: defaultDialTimeout,
		dialHosts:   defaultDialHosts,
		log:         zap.NewNop(),
	}

	fsys, err := procfs.NewDefaultFS()
	if err != nil {
		s.procErr = err
	} else {
		s.proc = &fsys
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listeners returns every TCP socket in the LISTEN state, IPv4 first.
//
// A missing /proc/net/tcp6 (IPv6 disabled in the kernel) is not an error.
// Returns ErrSocketTableUnavailable when procfs could not be opened.
func (s *Scanner) Listeners(ctx context.Context) ([]model.Listener, error) {
	if s.proc == nil {
		return nil, fmt.Errorf("%w: %v", ErrSocketTableUnavailable, s.procErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tcp4, err := s.proc.NetTCP()
	if err != nil {
		return nil, fmt.Errorf("failed to read tcp socket table: %w", err)
	}

	tcp6, err := s.proc.NetTCP6()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read tcp6 socket table: %w", err)
		}
		s.log.Debug("no tcp6 socket table, assuming IPv6 is disabled")
		tcp6 = nil
	}

	listeners := make([]model.Listener, 0)
	listeners = appendListeners(listeners, tcp4, model.FamilyTCP4)
	listeners = appendListeners(listeners, tcp6, model.FamilyTCP6)
	return listeners, nil
}

// appendListeners keeps LISTEN rows of one socket table.
func appendListeners(dst []model.Listener, table procfs.NetTCP, family model.SocketFamily) []model.Listener {
	for _, line := range table {
		if line.St != tcpListen {
			continue
		}
		dst = append(dst, model.Listener{
			Address: line.LocalAddr.String(),
			Port:    int(line.LocalPort),
			Family:  family,
		})
	}
	return dst
}

// Check reports whether port is in the listening state.
//
// The match is on the exact local port of a LISTEN socket: established
// connections, remote ports and ports that merely contain the digits
// (18502 for 8502) do not count.
func (s *Scanner) Check(ctx context.Context, port int) (*model.PortStatus, error) {
	if err := model.ValidatePort(port); err != nil {
		return nil, err
	}

	all, err := s.Listeners(ctx)
	if err == nil {
		status := &model.PortStatus{Port: port, Method: model.MethodProcFS, Attempts: 1}
		for _, l := range all {
			if l.Port == port {
				status.Listeners = append(status.Listeners, l)
			}
		}
		status.Listening = len(status.Listeners) > 0
		return status, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	s.log.Debug("socket table unreadable, falling back to loopback dial", zap.Error(err))
	return s.dialCheck(ctx, port)
}

// dialCheck connects to the port on each loopback address. Any accepted
// connection means something is listening.
func (s *Scanner) dialCheck(ctx context.Context, port int) (*model.PortStatus, error) {
	status := &model.PortStatus{Port: port, Method: model.MethodDial, Attempts: 1}
	dialer := net.Dialer{Timeout: s.dialTimeout}

	for _, host := range s.dialHosts {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.log.Debug("dial probe failed", zap.String("addr", addr), zap.Error(err))
			continue
		}
		_ = conn.Close()
		status.Listening = true
		return status, nil
	}
	return status, nil
}

// UsedPorts returns the sorted, de-duplicated local ports of all
// listening sockets. It backs the verbose "nothing on 8502, but these are
// open" hint.
func (s *Scanner) UsedPorts(ctx context.Context) ([]int, error) {
	all, err := s.Listeners(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(all))
	ports := make([]int, 0, len(all))
	for _, l := range all {
		if _, ok := seen[l.Port]; ok {
			continue
		}
		seen[l.Port] = struct{}{}
		ports = append(ports, l.Port)
	}
	sort.Ints(ports)
	return ports, nil
}
