package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agribotics/agribot/pkg/calib"
	"github.com/agribotics/agribot/pkg/control"
	"github.com/agribotics/agribot/pkg/kinematics"
	"github.com/agribotics/agribot/pkg/mission"
	"github.com/agribotics/agribot/pkg/protocol"
	"github.com/agribotics/agribot/pkg/vision"
)

type RunCommand struct {
	Port          string   `long:"port" description:"Serial port (overrides calibration)"`
	Config        string   `long:"config" default:"calibration.json" description:"Calibration file"`
	Report        string   `long:"report" default:"report.json" description:"Mission event log"`
	SingleShot    bool     `long:"single-shot" description:"Stop after the first spray"`
	Spray         float64  `long:"spray" description:"Override spray duration in seconds"`
	Classes       []string `long:"class" description:"Spray target class (repeatable, default weed)"`
	MinConfidence float64  `long:"min-confidence" default:"0.5" description:"Detection confidence floor"`
}

func (c *RunCommand) Execute(args []string) error {
	cfg, found, err := calib.Load(c.Config)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(os.Stderr, "No calibration at %s, using defaults. Run 'agribot tune' first.\n", c.Config)
	}
	if c.Port != "" {
		cfg.SerialPort = c.Port
	}
	if c.Spray > 0 {
		cfg.SprayDuration = c.Spray
	}

	seq, client, err := buildMission(cfg, c.Report, c.Classes, c.MinConfidence, c.SingleShot)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for msg := range seq.Logs() {
			fmt.Println(msg)
		}
	}()

	if err := seq.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("Mission ended in state %s, %d target(s) sprayed.\n", seq.State(), seq.SprayCount())
	return nil
}

// buildMission wires the full stack: serial client, detector feed on
// stdin, arm model and sequencer.
func buildMission(cfg calib.Config, report string, classes []string, minConfidence float64, singleShot bool) (*mission.Sequencer, *protocol.Client, error) {
	client, err := protocol.Dial(cfg.SerialPort, cfg.BaudRate, cfg.Timeout())
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = client.Ping(pingCtx)
	cancel()
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("controller not responding on %s: %w", cfg.SerialPort, err)
	}

	if len(classes) == 0 {
		classes = []string{"weed"}
	}
	source := vision.NewJSONLSource(os.Stdin, vision.NewClassSet(minConfidence, classes...))

	events, err := mission.OpenEventLog(report)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	deps := mission.Deps{
		Link:   client,
		Source: source,
		Arm: control.NewTimeBased(control.TimeBasedConfig{
			Speed: cfg.ArmSpeedCmPerSec,
		}),
		Solver: armSolver(cfg),
		Events: events,
	}
	if cfg.HasIntrinsics() {
		cam := kinematics.NewCamera(cfg)
		deps.Camera = &cam
	}

	seq, err := mission.New(cfg, deps, mission.Options{SingleShot: singleShot})
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return seq, client, nil
}

// armSolver models the physical arm: a linear extension sized from the
// calibrated travel plus the binary head tilt.
func armSolver(cfg calib.Config) *kinematics.Solver {
	travel := cfg.MaxExtendSeconds() * cfg.ArmSpeedCmPerSec
	s, err := kinematics.NewSolver(kinematics.LinearRotary(), []kinematics.Joint{
		{Name: "extend", Kind: kinematics.Linear, Min: 0, Max: travel, Speed: cfg.ArmSpeedCmPerSec},
		{Name: "tilt", Kind: kinematics.Rotary, Min: 0, Max: 90, Speed: 90},
	})
	if err != nil {
		return nil
	}
	return s
}
