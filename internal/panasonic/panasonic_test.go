package panasonic

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantilt-tracker/internal/ptz"
)

var _ ptz.Actuator = (*Controller)(nil)

type fakeHead struct {
	mu       sync.Mutex
	commands []string
	position string
}

func (f *fakeHead) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cmd := r.URL.Query().Get("cmd")
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	switch {
	case cmd == "#APC":
		w.Write([]byte(f.position))
	case strings.HasPrefix(cmd, "#APC"):
		w.Write([]byte("aPC" + cmd[4:]))
	default:
		w.Write([]byte(cmd[1:]))
	}
}

func (f *fakeHead) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func newHead(t *testing.T, position string) (*fakeHead, *Controller) {
	t.Helper()
	head := &fakeHead{position: position}
	srv := httptest.NewServer(head)
	t.Cleanup(srv.Close)

	c, err := NewController(Config{Address: strings.TrimPrefix(srv.URL, "http://"), UnitsPerDegree: 100})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return head, c
}

func TestQueryPosition(t *testing.T) {
	// pan +10deg (0x8000+1000), tilt -5deg (0x8000-500)
	_, c := newHead(t, "aPC83E87E0C")

	pan, err := c.Pan()
	require.NoError(t, err)
	assert.InDelta(t, 10, pan, 1e-9)

	tilt, err := c.Tilt()
	require.NoError(t, err)
	assert.InDelta(t, -5, tilt, 1e-9)
}

func TestSetSendsAbsoluteCommand(t *testing.T) {
	head, c := newHead(t, "aPC80008000")

	require.NoError(t, c.SetTilt(20))

	assert.Eventually(t, func() bool {
		cmds := head.sent()
		return len(cmds) == 2 && cmds[1] == "#APC800087D0"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "#APC", head.sent()[0])

	tilt, err := c.Tilt()
	require.NoError(t, err)
	assert.Equal(t, 20.0, tilt)
}

func TestSetCoalescesBursts(t *testing.T) {
	head, c := newHead(t, "aPC80008000")

	for deg := 1.0; deg <= 10; deg++ {
		require.NoError(t, c.SetPan(deg))
	}

	// First move goes out at once, the rest collapse into one trailing send of the last target.
	assert.Eventually(t, func() bool {
		cmds := head.sent()
		return len(cmds) == 3 && cmds[2] == "#APC83E88000"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "#APC80648000", head.sent()[1])
}

func TestDisableStops(t *testing.T) {
	head, c := newHead(t, "aPC80008000")
	require.NoError(t, c.Enable(ptz.Tilt, false))
	assert.Equal(t, []string{"#PTS5050"}, head.sent())
}

func TestHaltDropsQueuedMove(t *testing.T) {
	head, c := newHead(t, "aPC80008000")
	g := ptz.NewGuard(c)

	require.NoError(t, g.SetPan(10))
	require.NoError(t, g.SetPan(20)) // waits in the trailing edge
	require.NoError(t, g.Halt())

	time.Sleep(300 * time.Millisecond)

	cmds := head.sent()
	assert.Equal(t, []string{"#APC", "#APC83E88000", "#PTS5050", "#PTS5050"}, cmds)
}

func TestTargetAfterStopMoves(t *testing.T) {
	head, c := newHead(t, "aPC80008000")

	require.NoError(t, c.SetPan(10))
	require.NoError(t, c.Enable(ptz.Pan, false))
	require.NoError(t, c.SetPan(-10))

	assert.Eventually(t, func() bool {
		cmds := head.sent()
		return len(cmds) == 4 && cmds[3] == "#APC7C188000"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "#PTS5050", head.sent()[2])
}

func TestCloseTwice(t *testing.T) {
	_, c := newHead(t, "aPC80008000")
	require.NoError(t, c.Close())
	assert.NotPanics(t, func() { c.Close() })
}

func TestBadPositionReply(t *testing.T) {
	_, c := newHead(t, "er1")
	_, err := c.Pan()
	assert.ErrorContains(t, err, "unexpected position reply")
}

func TestRequiresAddress(t *testing.T) {
	_, err := NewController(Config{})
	assert.ErrorContains(t, err, "address is required")
}
