package main

import (
	"fmt"
	"os"

	"github.com/agribotics/agribot/pkg/mission"
)

type ReportCommand struct {
	Report string `long:"report" default:"report.json" description:"Mission event log"`
	Tail   int    `long:"tail" description:"Print only the last N events instead of CSV"`
}

func (c *ReportCommand) Execute(args []string) error {
	log, err := mission.OpenEventLog(c.Report)
	if err != nil {
		return err
	}
	if log.Len() == 0 {
		fmt.Fprintln(os.Stderr, "No events recorded yet.")
		return nil
	}

	if c.Tail > 0 {
		for _, e := range log.Tail(c.Tail) {
			fmt.Printf("%s  %-15s (%.0f, %.0f) %s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.X, e.Y, e.Detail)
		}
		return nil
	}
	return log.WriteCSV(os.Stdout)
}
