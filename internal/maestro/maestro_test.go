package maestro

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantilt-tracker/internal/ptz"
)

var _ ptz.Actuator = (*Controller)(nil)

// fakePort records writes and serves reads from a canned reply buffer.
// An exhausted reply buffer behaves like a serial read timeout.
type fakePort struct {
	written bytes.Buffer
	reply   bytes.Buffer
}

func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }

func (p *fakePort) Read(b []byte) (int, error) {
	if p.reply.Len() == 0 {
		return 0, nil
	}
	return p.reply.Read(b)
}

func testConfig() Config {
	return Config{PanChannel: 0, TiltChannel: 1, MinPulseUs: 600, MaxPulseUs: 2400}
}

func TestSetTargetEncoding(t *testing.T) {
	port := &fakePort{}
	c := New(port, testConfig())

	// 0 degrees = 1500us = 6000 quarter-us = 0x1770
	require.NoError(t, c.SetPan(0))
	assert.Equal(t, []byte{0x84, 0x00, 0x70, 0x2E}, port.written.Bytes())

	port.written.Reset()
	// +90 degrees = 2400us = 9600 = 0x2580
	require.NoError(t, c.SetTilt(90))
	assert.Equal(t, []byte{0x84, 0x01, 0x00, 0x4B}, port.written.Bytes())
}

func TestEnableRestoresLastTarget(t *testing.T) {
	port := &fakePort{}
	c := New(port, testConfig())

	require.NoError(t, c.Enable(ptz.Pan, true))
	assert.Zero(t, port.written.Len(), "never-moved channel stays quiet")

	require.NoError(t, c.SetPan(0))
	port.written.Reset()

	require.NoError(t, c.Enable(ptz.Pan, false))
	assert.Equal(t, []byte{0x84, 0x00, 0x00, 0x00}, port.written.Bytes())

	port.written.Reset()
	require.NoError(t, c.Enable(ptz.Pan, true))
	assert.Equal(t, []byte{0x84, 0x00, 0x70, 0x2E}, port.written.Bytes())
}

func TestPositionReadBack(t *testing.T) {
	port := &fakePort{}
	c := New(port, testConfig())

	port.reply.Write([]byte{0x70, 0x17}) // 6000 quarter-us
	deg, err := c.Tilt()
	require.NoError(t, err)
	assert.InDelta(t, 0, deg, 1e-9)
	assert.Equal(t, []byte{0x90, 0x01}, port.written.Bytes())

	port.reply.Write([]byte{0x00, 0x00})
	deg, err = c.Pan()
	require.NoError(t, err)
	assert.Zero(t, deg)
}

func TestPositionTimeout(t *testing.T) {
	c := New(&fakePort{}, testConfig())
	_, err := c.Pan()
	assert.ErrorIs(t, err, errNoReply)
}

func TestRejectsOutOfRange(t *testing.T) {
	port := &fakePort{}
	c := New(port, testConfig())
	assert.ErrorIs(t, c.SetTilt(-100), ptz.ErrOutOfRange)
	assert.Zero(t, port.written.Len())
}
