package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Control modes
const (
	ModePID    = "pid"
	ModeDirect = "direct"
)

// Direct correction policies
const (
	PolicyProportional = "proportional"
	PolicyStep         = "step"
)

// Actuator back ends
const (
	ActuatorPanTiltHAT = "pantilthat"
	ActuatorMaestro    = "maestro"
	ActuatorVISCA      = "visca"
	ActuatorPanasonic  = "panasonic"
	ActuatorSim        = "sim"
)

// Camera types
const (
	CameraUSB  = "usb"
	CameraPi   = "pi"
	CameraRTSP = "rtsp"
	CameraFile = "file"
)

// Config is the complete tracker configuration
type Config struct {
	Mode     string         `yaml:"mode"` // pid or direct
	Camera   CameraConfig   `yaml:"camera"`
	Vision   VisionConfig   `yaml:"vision"`
	Control  ControlConfig  `yaml:"control"`
	Direct   DirectConfig   `yaml:"direct"`
	Actuator ActuatorConfig `yaml:"actuator"`
	Display  DisplayConfig  `yaml:"display"`
}

// CameraConfig selects and configures the frame source
type CameraConfig struct {
	Type   string        `yaml:"type"`   // usb, pi, rtsp, file
	Device string        `yaml:"device"` // device index, URL or path
	Width  int           `yaml:"width"`
	Height int           `yaml:"height"`
	FPS    int           `yaml:"fps"`
	Warmup time.Duration `yaml:"warmup"` // settling delay before the first read
}

// VisionConfig configures detection
type VisionConfig struct {
	Cascade  string  `yaml:"cascade"`  // Haar cascade XML
	Scale    float64 `yaml:"scale"`    // downscale factor applied before detection
	Upsample int     `yaml:"upsample"` // 0 trades accuracy for speed
}

// Point is a pixel coordinate in full-resolution frame units
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Gains for one PID loop
type Gains struct {
	P float64 `yaml:"p"`
	I float64 `yaml:"i"`
	D float64 `yaml:"d"`
}

// ControlConfig configures the PID strategy
type ControlConfig struct {
	Center       Point         `yaml:"center"` // target point the subject is driven to
	Idle         Point         `yaml:"idle"`   // published when nothing is detected
	PollInterval time.Duration `yaml:"poll_interval"`
	Pan          Gains         `yaml:"pan"`
	Tilt         Gains         `yaml:"tilt"`
}

// DirectConfig configures the single-loop correction strategy
type DirectConfig struct {
	Policy    string  `yaml:"policy"` // proportional or step
	Reference Point   `yaml:"reference"`
	Slack     float64 `yaml:"slack"`  // deadband in pixels
	Factor    float64 `yaml:"factor"` // degrees per pixel, proportional policy
	Res       float64 `yaml:"res"`    // degrees per cycle, step policy
}

// ActuatorConfig selects the servo back end
type ActuatorConfig struct {
	Type string `yaml:"type"`

	// pantilthat
	I2CBus  string `yaml:"i2c_bus"`
	I2CAddr uint16 `yaml:"i2c_addr"`

	// maestro
	SerialPort  string `yaml:"serial_port"`
	Baud        int    `yaml:"baud"`
	PanChannel  uint8  `yaml:"pan_channel"`
	TiltChannel uint8  `yaml:"tilt_channel"`
	MinPulseUs  int    `yaml:"min_pulse_us"`
	MaxPulseUs  int    `yaml:"max_pulse_us"`

	// visca and panasonic
	Address        string  `yaml:"address"`
	Protocol       string  `yaml:"protocol"`         // udp or tcp, visca only
	UnitsPerDegree float64 `yaml:"units_per_degree"` // 0 picks the back end default
}

// DisplayConfig configures the optional viewing server
type DisplayConfig struct {
	Listen    string        `yaml:"listen"` // empty disables the server
	RTSPRelay bool          `yaml:"rtsp_relay"`
	Telemetry time.Duration `yaml:"telemetry"` // websocket telemetry period

	// Static server IPs; enables ICE-lite for the WebRTC relay
	ICELiteIPs []string `yaml:"ice_lite_ips"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := defaults()
	cfg.fillCenters()
	return cfg
}

// defaults leaves the frame points zero so they follow the resolution
func defaults() *Config {
	return &Config{
		Mode: ModePID,
		Camera: CameraConfig{
			Type:   CameraUSB,
			Device: "0",
			Width:  320,
			Height: 240,
			FPS:    32,
			Warmup: 2 * time.Second,
		},
		Vision: VisionConfig{
			Cascade:  "haarcascade_frontalface_default.xml",
			Scale:    0.5,
			Upsample: 0,
		},
		Control: ControlConfig{
			PollInterval: 5 * time.Millisecond,
			Pan:          Gains{P: 0.09, I: 0.08, D: 0.002},
			Tilt:         Gains{P: 0.05, I: 0.0001, D: 0.05},
		},
		Direct: DirectConfig{
			Policy: PolicyProportional,
			Slack:  20,
			Factor: 0.15,
			Res:    5,
		},
		Actuator: ActuatorConfig{
			Type:        ActuatorPanTiltHAT,
			I2CBus:      "1",
			I2CAddr:     0x15,
			SerialPort:  "/dev/ttyACM0",
			Baud:        9600,
			PanChannel:  0,
			TiltChannel: 1,
			MinPulseUs:  600,
			MaxPulseUs:  2400,
			Protocol:    "udp",
		},
		Display: DisplayConfig{
			Listen:    ":8080",
			Telemetry: 200 * time.Millisecond,
		},
	}
}

// fillCenters sets every frame point left at zero to the frame center
func (c *Config) fillCenters() {
	mid := Point{X: c.Camera.Width / 2, Y: c.Camera.Height / 2}
	for _, p := range []*Point{&c.Control.Center, &c.Control.Idle, &c.Direct.Reference} {
		if *p == (Point{}) {
			*p = mid
		}
	}
}

// Load reads a YAML file over the defaults. Frame points the file leaves
// out are centered in the configured resolution.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.fillCenters()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
