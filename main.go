package main

import (
	"context"
	"embed"
	"flag"
	"image"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"pantilt-tracker/internal/config"
	"pantilt-tracker/internal/ptz"
	"pantilt-tracker/internal/rtsp"
	"pantilt-tracker/internal/server"
	"pantilt-tracker/internal/state"
	"pantilt-tracker/internal/tracker"
	"pantilt-tracker/internal/vision"
	"pantilt-tracker/internal/vision/cv"
)

//go:embed web/*
var staticFiles embed.FS

func main() {
	// Command line flags
	configPath := flag.String("config", "", "YAML configuration file (built-in defaults when empty)")
	mode := flag.String("mode", "", "Control mode (pid or direct)")
	actuator := flag.String("actuator", "", "Servo back end (pantilthat, maestro, visca, panasonic, sim)")
	listenAddr := flag.String("listen", "", "HTTP listen address, \"off\" disables the viewer")
	camera := flag.String("camera", "", "Camera device index, RTSP URL or file path")
	iceIPs := flag.String("ice-ips", "", "Comma-separated list of static server IPs (enables ICE-lite mode)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *actuator != "" {
		cfg.Actuator.Type = *actuator
	}
	if *listenAddr == "off" {
		cfg.Display.Listen = ""
	} else if *listenAddr != "" {
		cfg.Display.Listen = *listenAddr
	}
	if *camera != "" {
		cfg.Camera.Device = *camera
	}
	if *iceIPs != "" {
		cfg.Display.ICELiteIPs = strings.Split(*iceIPs, ",")
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Pan/Tilt Tracker")
	log.Printf("  Mode: %s", cfg.Mode)
	log.Printf("  Camera: %s %s (%dx%d @ %d fps)", cfg.Camera.Type, cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS)
	log.Printf("  Actuator: %s", cfg.Actuator.Type)
	if cfg.Display.Listen != "" {
		log.Printf("  Listen: %s", cfg.Display.Listen)
	}
	if len(cfg.Display.ICELiteIPs) > 0 {
		log.Printf("  WebRTC: ICE-lite mode enabled with IPs: %s", strings.Join(cfg.Display.ICELiteIPs, ","))
	}

	if cfg.Camera.Type == config.CameraRTSP {
		codec, err := rtsp.Probe(cfg.Camera.Device)
		if err != nil {
			log.Fatalf("Failed to probe RTSP camera: %v", err)
		}
		log.Printf("RTSP camera streams %s", codec)
	}

	src, err := cv.OpenCamera(cv.CameraConfig{
		Type:   cfg.Camera.Type,
		Device: cfg.Camera.Device,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
		Warmup: cfg.Camera.Warmup,
	})
	if err != nil {
		log.Fatalf("Failed to open camera: %v", err)
	}
	defer src.Close()

	detector, err := cv.NewHaarDetector(cfg.Vision.Cascade)
	if err != nil {
		log.Fatalf("Failed to load detector: %v", err)
	}
	defer detector.Close()

	act, err := openActuator(cfg.Actuator)
	if err != nil {
		log.Fatalf("Failed to open actuator: %v", err)
	}
	guard := ptz.NewGuard(act)
	defer guard.Close()

	cells := state.New(int64(cfg.Control.Center.X), int64(cfg.Control.Center.Y))
	cells.SetGains(ptz.Pan, state.Gains(cfg.Control.Pan))
	cells.SetGains(ptz.Tilt, state.Gains(cfg.Control.Tilt))

	pipeline := &tracker.Pipeline{
		Geometry: cv.Geometry{},
		Detector: detector,
		Scale:    cfg.Vision.Scale,
		Upsample: cfg.Vision.Upsample,
	}

	sup := &tracker.Supervisor{Guard: guard}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srv *server.Server
	if cfg.Display.Listen != "" {
		srv, err = server.New(server.Config{
			ListenAddr: cfg.Display.Listen,
			Telemetry:  cfg.Display.Telemetry,
			Mode:       cfg.Mode,
			Actuator:   cfg.Actuator.Type,
			Camera:     cfg.Camera.Type,
			RTSPURL:    relayURL(cfg),
			ICELiteIPs: cfg.Display.ICELiteIPs,
		}, staticFiles, cells, sup, guard)
		if err != nil {
			log.Fatalf("Failed to create server: %v", err)
		}

		feed := srv.Feed()
		annotator := cv.Annotator{Quality: 80}
		preview := vision.NewPreview(vision.RenderFunc(func(f vision.Frame, detections []image.Rectangle) {
			jpeg, err := annotator.Encode(f, detections)
			if err != nil {
				log.Printf("Preview: %v", err)
				return
			}
			feed.Publish(jpeg)
		}), feed.Active)
		pipeline.Sink = preview

		go preview.Run(ctx)
		go func() {
			if err := srv.Start(); err != nil {
				log.Printf("Server error: %v", err)
			}
		}()
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	runErr := sup.Run(ctx, buildStrategy(cfg, src, pipeline, cells, guard).Units()...)
	if srv != nil {
		srv.Stop()
	}
	if runErr != nil {
		// Servos are already off; deferred closes are skipped by Fatalf.
		guard.Close()
		log.Fatalf("Tracker stopped: %v", runErr)
	}
	log.Println("Stopped")
}

func buildStrategy(cfg *config.Config, src vision.Source, p *tracker.Pipeline, cells *state.Cells, act ptz.Actuator) tracker.Strategy {
	if cfg.Mode == config.ModeDirect {
		var policy tracker.CorrectionPolicy = tracker.Proportional{Factor: cfg.Direct.Factor}
		if cfg.Direct.Policy == config.PolicyStep {
			policy = tracker.FixedStep{Res: cfg.Direct.Res}
		}
		return &tracker.DirectStrategy{Corrector: &tracker.Corrector{
			Source:   src,
			Pipeline: p,
			Actuator: act,
			Reference: tracker.Point{
				X: float64(cfg.Direct.Reference.X),
				Y: float64(cfg.Direct.Reference.Y),
			},
			Slack:  cfg.Direct.Slack,
			Policy: policy,
			Cells:  cells,
		}}
	}

	idle := tracker.Point{X: float64(cfg.Control.Idle.X), Y: float64(cfg.Control.Idle.Y)}
	return tracker.NewPIDStrategy(src, p, cells, act, idle, cfg.Control.PollInterval)
}

func relayURL(cfg *config.Config) string {
	if cfg.Display.RTSPRelay {
		return cfg.Camera.Device
	}
	return ""
}
