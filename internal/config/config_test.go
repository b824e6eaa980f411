package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	// Idle center sits at half the nominal resolution.
	assert.Equal(t, cfg.Camera.Width/2, cfg.Control.Idle.X)
	assert.Equal(t, cfg.Camera.Height/2, cfg.Control.Idle.Y)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
mode: direct
camera:
  width: 640
  height: 480
  warmup: 500ms
direct:
  policy: step
  res: 3
actuator:
  type: sim
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeDirect, cfg.Mode)
	assert.Equal(t, 640, cfg.Camera.Width)
	assert.Equal(t, 500*time.Millisecond, cfg.Camera.Warmup)
	assert.Equal(t, PolicyStep, cfg.Direct.Policy)
	assert.Equal(t, 3.0, cfg.Direct.Res)
	assert.Equal(t, 20.0, cfg.Direct.Slack)
	assert.Equal(t, 0.5, cfg.Vision.Scale)
	assert.Equal(t, Gains{P: 0.09, I: 0.08, D: 0.002}, cfg.Control.Pan)
}

func TestLoadCentersFollowResolution(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
camera:
  width: 640
  height: 480
control:
  idle: {x: 100, y: 50}
`))
	require.NoError(t, err)

	assert.Equal(t, Point{X: 320, Y: 240}, cfg.Control.Center)
	assert.Equal(t, Point{X: 320, Y: 240}, cfg.Direct.Reference)
	assert.Equal(t, Point{X: 100, Y: 50}, cfg.Control.Idle)

	cfg, err = Load(writeConfig(t, "mode: direct\n"))
	require.NoError(t, err)
	assert.Equal(t, Point{X: 160, Y: 120}, cfg.Control.Center)
	assert.Equal(t, Point{X: 160, Y: 120}, cfg.Direct.Reference)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "mode: [pid"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Mode = "auto"
	cfg.Vision.Scale = 0
	cfg.Actuator.Type = "stepper"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `mode must be "pid" or "direct"`)
	assert.Contains(t, err.Error(), "vision scale")
	assert.Contains(t, err.Error(), `unknown actuator type "stepper"`)
}

func TestValidateActuatorBackends(t *testing.T) {
	cfg := Default()
	cfg.Actuator.Type = ActuatorVISCA
	assert.ErrorContains(t, Validate(cfg), "address is required")

	cfg.Actuator.Address = "192.168.1.100:52381"
	assert.NoError(t, Validate(cfg))

	cfg.Actuator.Type = ActuatorMaestro
	cfg.Actuator.TiltChannel = cfg.Actuator.PanChannel
	assert.ErrorContains(t, Validate(cfg), "channels must differ")
}

func TestValidateRelayNeedsRTSP(t *testing.T) {
	cfg := Default()
	cfg.Display.RTSPRelay = true
	assert.ErrorContains(t, Validate(cfg), "rtsp_relay")

	cfg.Camera.Type = CameraRTSP
	cfg.Camera.Device = "rtsp://camera.local/stream"
	assert.NoError(t, Validate(cfg))
}
