package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Run     RunCommand     `command:"run" description:"Run a spray mission headless"`
	Monitor MonitorCommand `command:"monitor" alias:"mon" description:"Run a spray mission with the live dashboard"`
	Tune    TuneCommand    `command:"tune" description:"Interactive calibration wizard"`
	Probe   ProbeCommand   `command:"probe" description:"List serial ports and test the controller handshake"`
	Report  ReportCommand  `command:"report" description:"Export the mission event log as CSV"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "AgriBot - weed spraying field robot controller"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
