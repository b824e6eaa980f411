package ptz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	enabled  map[Axis]bool
	pan      float64
	tilt     float64
	failAxis Axis
	fail     bool
}

func (r *recorder) Enable(axis Axis, on bool) error {
	if r.fail && axis == r.failAxis {
		return errors.New("bus error")
	}
	if r.enabled == nil {
		r.enabled = map[Axis]bool{}
	}
	r.enabled[axis] = on
	return nil
}

func (r *recorder) SetPan(deg float64) error  { r.pan = deg; return nil }
func (r *recorder) SetTilt(deg float64) error { r.tilt = deg; return nil }
func (r *recorder) Pan() (float64, error)     { return r.pan, nil }
func (r *recorder) Tilt() (float64, error)    { return r.tilt, nil }
func (r *recorder) Close() error              { return nil }

func TestCheckRange(t *testing.T) {
	assert.NoError(t, CheckRange(-90))
	assert.NoError(t, CheckRange(90))
	assert.NoError(t, CheckRange(0))
	assert.ErrorIs(t, CheckRange(90.01), ErrOutOfRange)
	assert.ErrorIs(t, CheckRange(-120), ErrOutOfRange)
}

func TestSetGetByAxis(t *testing.T) {
	r := &recorder{}
	require.NoError(t, Set(r, Pan, 12))
	require.NoError(t, Set(r, Tilt, -7))

	pan, err := Get(r, Pan)
	require.NoError(t, err)
	tilt, err := Get(r, Tilt)
	require.NoError(t, err)

	assert.Equal(t, 12.0, pan)
	assert.Equal(t, -7.0, tilt)
}

func TestDisableAttemptsBothAxes(t *testing.T) {
	r := &recorder{fail: true, failAxis: Pan}
	r.enabled = map[Axis]bool{Pan: true, Tilt: true}

	err := Disable(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pan")
	assert.False(t, r.enabled[Tilt])
}

func TestAxisString(t *testing.T) {
	assert.Equal(t, "pan", Pan.String())
	assert.Equal(t, "tilt", Tilt.String())
	assert.Equal(t, "axis(7)", Axis(7).String())
}
