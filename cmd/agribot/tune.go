package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.bug.st/serial"

	"github.com/agribotics/agribot/pkg/calib"
	"github.com/agribotics/agribot/pkg/protocol"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type TuneCommand struct {
	Config string `long:"config" default:"calibration.json" description:"Calibration file"`
}

func (c *TuneCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("AgriBot Tune"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━"))
	fmt.Println()

	cfg, found, err := calib.Load(c.Config)
	if err != nil {
		return err
	}
	if found {
		fmt.Printf("Editing %s\n\n", c.Config)
	} else {
		fmt.Println("Starting from factory defaults.")
		fmt.Println()
	}

	if err := pickPort(&cfg); err != nil {
		return err
	}
	if err := tuneMotion(&cfg); err != nil {
		return err
	}
	if err := tuneVision(&cfg); err != nil {
		return err
	}

	if err := cfg.Save(c.Config); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Calibration saved."))
	fmt.Printf("Written to %s\n", c.Config)
	fmt.Println()
	fmt.Println("Start a mission with: " + headerStyle.Render("agribot run"))
	return nil
}

func pickPort(cfg *calib.Config) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}

	var options []huh.Option[string]
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		label := port
		if port == cfg.SerialPort {
			label += " (current)"
		}
		options = append(options, huh.NewOption(label, port))
	}
	options = append(options, huh.NewOption("Keep "+cfg.SerialPort, cfg.SerialPort))

	port := cfg.SerialPort
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Controller serial port").
				Description("The board driving the wheels and arm").
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		os.Exit(0)
	}
	cfg.SerialPort = port

	// Quick handshake so a wrong pick fails here, not mid-field.
	fmt.Printf("Testing %s... ", port)
	if err := handshake(port, cfg.BaudRate); err != nil {
		fmt.Println("no response")
	} else {
		fmt.Println(successStyle.Render("ok"))
	}
	return nil
}

func tuneMotion(cfg *calib.Config) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("━━━ Motion ━━━"))
	fmt.Println("Measure with a tape: command a long arm move and a timed")
	fmt.Println("drive, then enter what the hardware actually did.")
	fmt.Println()

	armSpeed := fmtFloat(cfg.ArmSpeedCmPerSec)
	wheelSpeed := fmtFloat(cfg.WheelSpeedCmPerSec)
	maxExtend := fmtFloat(cfg.MaxArmExtendCm)
	spray := fmtFloat(cfg.SprayDuration)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Arm speed (cm/s)").
				Description("Distance traveled in a 5s extension, divided by 5").
				Validate(validFloat).
				Value(&armSpeed),
			huh.NewInput().
				Title("Wheel speed (cm/s)").
				Description("Distance covered in a 5s drive, divided by 5").
				Validate(validFloat).
				Value(&wheelSpeed),
			huh.NewInput().
				Title("Max arm travel (cm, 0 to keep the time clamp)").
				Validate(validFloat).
				Value(&maxExtend),
			huh.NewInput().
				Title("Spray duration (s)").
				Validate(validFloat).
				Value(&spray),
		),
	)
	if err := form.Run(); err != nil {
		os.Exit(0)
	}

	cfg.ArmSpeedCmPerSec, _ = strconv.ParseFloat(armSpeed, 64)
	cfg.WheelSpeedCmPerSec, _ = strconv.ParseFloat(wheelSpeed, 64)
	cfg.MaxArmExtendCm, _ = strconv.ParseFloat(maxExtend, 64)
	cfg.SprayDuration, _ = strconv.ParseFloat(spray, 64)
	if cfg.MaxArmExtendCm > 0 && cfg.ArmSpeedCmPerSec > 0 {
		cfg.MaxArmExtendTime = cfg.MaxArmExtendCm / cfg.ArmSpeedCmPerSec
	}
	return nil
}

func tuneVision(cfg *calib.Config) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("━━━ Vision ━━━"))
	fmt.Println("Place a ruler on the ground in view of the camera and read")
	fmt.Println("how many centimeters one pixel covers on each axis.")
	fmt.Println()

	pxZ := fmtFloat(cfg.PixelToCmZ)
	pxX := fmtFloat(cfg.PixelToCmX)
	height := fmtFloat(cfg.CameraHeightCm)
	tolerance := fmtFloat(cfg.AlignmentTolerancePx)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Pixel to cm, extension axis").
				Validate(validFloat).
				Value(&pxZ),
			huh.NewInput().
				Title("Pixel to cm, drive axis").
				Validate(validFloat).
				Value(&pxX),
			huh.NewInput().
				Title("Camera height above ground (cm)").
				Validate(validFloat).
				Value(&height),
			huh.NewInput().
				Title("Alignment tolerance (px)").
				Validate(validFloat).
				Value(&tolerance),
		),
	)
	if err := form.Run(); err != nil {
		os.Exit(0)
	}

	cfg.PixelToCmZ, _ = strconv.ParseFloat(pxZ, 64)
	cfg.PixelToCmX, _ = strconv.ParseFloat(pxX, 64)
	cfg.CameraHeightCm, _ = strconv.ParseFloat(height, 64)
	cfg.AlignmentTolerancePx, _ = strconv.ParseFloat(tolerance, 64)
	return nil
}

func handshake(port string, baud int) error {
	client, err := protocol.Dial(port, baud, 2*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func validFloat(s string) error {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("enter a number")
	}
	return nil
}
