package port

import (
	"context"
	"errors"
	"net"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// listenLoopback starts a TCP listener on an OS-assigned loopback port and
// returns it with its port number. The listener is closed when the test
// ends.
func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to start test listener")
	t.Cleanup(func() { _ = listener.Close() })

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return listener, tcpAddr.Port
}

// closedPort returns a loopback port that was free a moment ago.
func closedPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}

// TestListeners_Fixture reads the fixture socket table: only LISTEN rows
// are returned, IPv4 before IPv6, with decoded addresses.
func TestListeners_Fixture(t *testing.T) {
	s := NewScanner(WithProcFS("testdata/proc"))

	listeners, err := s.Listeners(context.Background())
	require.NoError(t, err)

	want := []model.Listener{
		{Address: "0.0.0.0", Port: 8502, Family: model.FamilyTCP4},
		{Address: "127.0.0.1", Port: 3306, Family: model.FamilyTCP4},
		{Address: "127.0.0.1", Port: 18502, Family: model.FamilyTCP4},
		{Address: "::", Port: 8502, Family: model.FamilyTCP6},
		{Address: "::1", Port: 8080, Family: model.FamilyTCP6},
	}
	if diff := cmp.Diff(want, listeners); diff != "" {
		t.Errorf("Listeners() mismatch (-want +got):\n%s", diff)
	}
}

// TestListeners_NoIPv6 verifies a kernel without /proc/net/tcp6 is not an
// error.
func TestListeners_NoIPv6(t *testing.T) {
	s := NewScanner(WithProcFS("testdata/noipv6"), WithLogger(zaptest.NewLogger(t)))

	listeners, err := s.Listeners(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listeners)
}

func TestListeners_Unavailable(t *testing.T) {
	s := NewScanner(WithoutProcFS())

	_, err := s.Listeners(context.Background())
	assert.True(t, errors.Is(err, ErrSocketTableUnavailable))
}

func TestCheck_Fixture(t *testing.T) {
	s := NewScanner(WithProcFS("testdata/proc"))

	tests := []struct {
		name      string
		port      int
		listening bool
		count     int
	}{
		{name: "dual stack listener", port: 8502, listening: true, count: 2},
		{name: "ipv6 loopback only", port: 8080, listening: true, count: 1},
		// 8081 only appears as the remote end of an established connection.
		{name: "remote port does not count", port: 8081, listening: false},
		// 50000 is the local end of an established connection.
		{name: "established socket does not count", port: 50000, listening: false},
		// The fixture has a listener on 18502; a substring match on "8502"
		// would wrongly accept 850 as well.
		{name: "no substring match", port: 850, listening: false},
		{name: "free port", port: 9999, listening: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := s.Check(context.Background(), tt.port)
			require.NoError(t, err)

			assert.Equal(t, tt.port, status.Port)
			assert.Equal(t, tt.listening, status.Listening)
			assert.Len(t, status.Listeners, tt.count)
			assert.Equal(t, model.MethodProcFS, status.Method)
			assert.Equal(t, 1, status.Attempts)
		})
	}
}

// TestCheck_TimeWaitOnly verifies that a port with only ESTABLISHED and
// TIME_WAIT sockets is reported as not listening.
func TestCheck_TimeWaitOnly(t *testing.T) {
	s := NewScanner(WithProcFS("testdata/noipv6"))

	status, err := s.Check(context.Background(), 8502)
	require.NoError(t, err)
	assert.False(t, status.Listening)
}

func TestCheck_InvalidPort(t *testing.T) {
	s := NewScanner(WithProcFS("testdata/proc"))

	_, err := s.Check(context.Background(), 0)
	assert.Error(t, err)
}

// TestCheck_LiveSocketTable runs against the real /proc with a real
// listener bound to an OS-assigned port.
func TestCheck_LiveSocketTable(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("procfs socket table is Linux only")
	}
	_, port := listenLoopback(t)

	s := NewScanner()
	status, err := s.Check(context.Background(), port)
	require.NoError(t, err)

	assert.True(t, status.Listening, "port %d has a listener", port)
	if status.Method == model.MethodProcFS {
		require.NotEmpty(t, status.Listeners)
		assert.Equal(t, "127.0.0.1", status.Listeners[0].Address)
	}
}

func TestCheck_DialFallback(t *testing.T) {
	_, port := listenLoopback(t)
	s := NewScanner(WithoutProcFS(), WithDialTimeout(time.Second))

	status, err := s.Check(context.Background(), port)
	require.NoError(t, err)

	assert.True(t, status.Listening)
	assert.Equal(t, model.MethodDial, status.Method)
	assert.Empty(t, status.Listeners)
}

func TestCheck_DialFallbackClosed(t *testing.T) {
	port := closedPort(t)
	s := NewScanner(WithoutProcFS(), WithDialTimeout(time.Second))

	status, err := s.Check(context.Background(), port)
	require.NoError(t, err)
	assert.False(t, status.Listening)
}

// TestCheck_UnreadableTableFallsBack points procfs at a directory without
// net/tcp: the scanner must fall back to dialing instead of failing.
func TestCheck_UnreadableTableFallsBack(t *testing.T) {
	_, port := listenLoopback(t)
	s := NewScanner(WithProcFS(t.TempDir()), WithDialTimeout(time.Second))

	status, err := s.Check(context.Background(), port)
	require.NoError(t, err)
	assert.True(t, status.Listening)
	assert.Equal(t, model.MethodDial, status.Method)
}

func TestCheck_CancelledContext(t *testing.T) {
	s := NewScanner(WithProcFS("testdata/proc"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Check(ctx, 8502)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestIdempotent runs the same check twice with the service up; both must
// succeed with identical results.
func TestIdempotent(t *testing.T) {
	s := NewScanner(WithProcFS("testdata/proc"))

	first, err := s.Check(context.Background(), 8502)
	require.NoError(t, err)
	second, err := s.Check(context.Background(), 8502)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestUsedPorts(t *testing.T) {
	s := NewScanner(WithProcFS("testdata/proc"))

	ports, err := s.UsedPorts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{3306, 8080, 8502, 18502}, ports)
}

func TestUsedPorts_Unavailable(t *testing.T) {
	s := NewScanner(WithoutProcFS())

	_, err := s.UsedPorts(context.Background())
	assert.Error(t, err)
}

// TestJoinHostPortIPv6 guards the dial address format for the ::1 probe.
func TestJoinHostPortIPv6(t *testing.T) {
	assert.Equal(t, "[::1]:8502", net.JoinHostPort("::1", strconv.Itoa(8502)))
}
