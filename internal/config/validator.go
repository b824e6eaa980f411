package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for values the tracker cannot run with
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Mode {
	case ModePID, ModeDirect:
	default:
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModePID, ModeDirect, cfg.Mode))
	}

	switch cfg.Camera.Type {
	case CameraUSB, CameraPi, CameraRTSP, CameraFile:
	default:
		errs = append(errs, fmt.Errorf("unknown camera type %q", cfg.Camera.Type))
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("camera resolution must be positive, got %dx%d", cfg.Camera.Width, cfg.Camera.Height))
	}
	if cfg.Camera.Warmup < 0 {
		errs = append(errs, errors.New("camera warmup must not be negative"))
	}

	if cfg.Vision.Scale <= 0 || cfg.Vision.Scale > 1 {
		errs = append(errs, fmt.Errorf("vision scale must be in (0, 1], got %g", cfg.Vision.Scale))
	}
	if cfg.Vision.Upsample < 0 {
		errs = append(errs, errors.New("vision upsample must not be negative"))
	}

	if cfg.Control.PollInterval < 0 {
		errs = append(errs, errors.New("control poll_interval must not be negative"))
	}

	switch cfg.Direct.Policy {
	case PolicyProportional:
		if cfg.Direct.Factor <= 0 {
			errs = append(errs, errors.New("direct factor must be positive"))
		}
	case PolicyStep:
		if cfg.Direct.Res <= 0 {
			errs = append(errs, errors.New("direct res must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown direct policy %q", cfg.Direct.Policy))
	}
	if cfg.Direct.Slack < 0 {
		errs = append(errs, errors.New("direct slack must not be negative"))
	}

	errs = append(errs, validateActuator(&cfg.Actuator)...)

	if cfg.Display.RTSPRelay && cfg.Camera.Type != CameraRTSP {
		errs = append(errs, errors.New("display rtsp_relay requires camera type rtsp"))
	}

	return errors.Join(errs...)
}

func validateActuator(a *ActuatorConfig) []error {
	var errs []error
	switch a.Type {
	case ActuatorPanTiltHAT:
		if a.I2CBus == "" {
			errs = append(errs, errors.New("actuator i2c_bus is required"))
		}
	case ActuatorMaestro:
		if a.SerialPort == "" {
			errs = append(errs, errors.New("actuator serial_port is required"))
		}
		if a.PanChannel == a.TiltChannel {
			errs = append(errs, errors.New("actuator pan and tilt channels must differ"))
		}
		if a.MinPulseUs <= 0 || a.MaxPulseUs <= a.MinPulseUs {
			errs = append(errs, fmt.Errorf("actuator pulse range %d-%d is invalid", a.MinPulseUs, a.MaxPulseUs))
		}
	case ActuatorVISCA, ActuatorPanasonic:
		if a.Address == "" {
			errs = append(errs, fmt.Errorf("actuator address is required for %s", a.Type))
		}
		if a.UnitsPerDegree < 0 {
			errs = append(errs, errors.New("actuator units_per_degree must not be negative"))
		}
	case ActuatorSim:
	default:
		errs = append(errs, fmt.Errorf("unknown actuator type %q", a.Type))
	}
	return errs
}
