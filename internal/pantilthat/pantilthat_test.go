package pantilthat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2ctest"

	"pantilt-tracker/internal/ptz"
)

var _ ptz.Actuator = (*HAT)(nil)

func newRecorded() (*HAT, *i2ctest.Record) {
	rec := &i2ctest.Record{}
	return New(&i2c.Dev{Bus: rec, Addr: DefaultAddress}), rec
}

func TestEnableWritesConfigBits(t *testing.T) {
	h, rec := newRecorded()

	require.NoError(t, h.Enable(ptz.Pan, true))
	require.NoError(t, h.Enable(ptz.Tilt, true))
	require.NoError(t, h.Enable(ptz.Pan, false))

	require.Len(t, rec.Ops, 3)
	assert.Equal(t, []byte{regConfig, 0x01}, rec.Ops[0].W)
	assert.Equal(t, []byte{regConfig, 0x03}, rec.Ops[1].W)
	assert.Equal(t, []byte{regConfig, 0x02}, rec.Ops[2].W)
	for _, op := range rec.Ops {
		assert.Equal(t, uint16(DefaultAddress), op.Addr)
	}
}

func TestSetEnablesThenWritesPulse(t *testing.T) {
	h, rec := newRecorded()

	require.NoError(t, h.SetTilt(0))
	require.NoError(t, h.SetTilt(90))

	require.Len(t, rec.Ops, 3)
	assert.Equal(t, []byte{regConfig, 0x02}, rec.Ops[0].W)
	// 575 + 1750/2 = 1450 = 0x05AA
	assert.Equal(t, []byte{regServo2, 0xAA, 0x05}, rec.Ops[1].W)
	// 2325 = 0x0915
	assert.Equal(t, []byte{regServo2, 0x15, 0x09}, rec.Ops[2].W)
}

func TestSetRejectsOutOfRange(t *testing.T) {
	h, rec := newRecorded()
	assert.ErrorIs(t, h.SetPan(90.5), ptz.ErrOutOfRange)
	assert.Empty(t, rec.Ops)
}

func TestReadBack(t *testing.T) {
	play := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: DefaultAddress, W: []byte{regServo1}, R: []byte{0x3D, 0x02}}, // 573us clamps below -90
			{Addr: DefaultAddress, W: []byte{regServo2}, R: []byte{0xAA, 0x05}}, // 1450us
		},
		DontPanic: true,
	}
	h := New(&i2c.Dev{Bus: play, Addr: DefaultAddress})

	pan, err := h.Pan()
	require.NoError(t, err)
	assert.Equal(t, -90.0, pan)

	tilt, err := h.Tilt()
	require.NoError(t, err)
	assert.Equal(t, 0.0, tilt)

	require.NoError(t, play.Close())
}

func TestPulseConversionRoundTrips(t *testing.T) {
	for _, deg := range []float64{-90, -45, -1, 0, 1, 30, 89, 90} {
		assert.Equal(t, deg, usToDegrees(degreesToUs(deg)), "deg %v", deg)
	}
}
