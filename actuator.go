package main

import (
	"fmt"

	"pantilt-tracker/internal/config"
	"pantilt-tracker/internal/maestro"
	"pantilt-tracker/internal/panasonic"
	"pantilt-tracker/internal/pantilthat"
	"pantilt-tracker/internal/ptz"
	"pantilt-tracker/internal/sim"
	"pantilt-tracker/internal/visca"
)

// openActuator connects the configured servo back end
func openActuator(cfg config.ActuatorConfig) (ptz.Actuator, error) {
	switch cfg.Type {
	case config.ActuatorPanTiltHAT:
		return pantilthat.Open(cfg.I2CBus, cfg.I2CAddr)
	case config.ActuatorMaestro:
		return maestro.Open(maestro.Config{
			Port:        cfg.SerialPort,
			Baud:        cfg.Baud,
			PanChannel:  cfg.PanChannel,
			TiltChannel: cfg.TiltChannel,
			MinPulseUs:  cfg.MinPulseUs,
			MaxPulseUs:  cfg.MaxPulseUs,
		})
	case config.ActuatorVISCA:
		return visca.NewController(visca.Config{
			Address:        cfg.Address,
			Protocol:       cfg.Protocol,
			UnitsPerDegree: cfg.UnitsPerDegree,
		})
	case config.ActuatorPanasonic:
		return panasonic.NewController(panasonic.Config{
			Address:        cfg.Address,
			UnitsPerDegree: cfg.UnitsPerDegree,
		})
	case config.ActuatorSim:
		return sim.NewMount(0, 0), nil
	}
	return nil, fmt.Errorf("unsupported actuator: %s", cfg.Type)
}
