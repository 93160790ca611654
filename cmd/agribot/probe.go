package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.bug.st/serial"

	"github.com/agribotics/agribot/pkg/protocol"
)

type ProbeCommand struct {
	Baud int  `long:"baud" default:"115200" description:"Baud rate for the handshake test"`
	Skip bool `long:"list-only" description:"List ports without sending PING"`
}

func (c *ProbeCommand) Execute(args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}

	var rows [][]string
	var live []bool
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		status := "-"
		ok := false
		if !c.Skip {
			if err := handshake(port, c.Baud); err != nil {
				status = "no response"
			} else {
				status = "PONG"
				ok = true
			}
		}
		rows = append(rows, []string{port, status})
		live = append(live, ok)
	}

	if len(rows) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}

	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	okStyle := cellStyle.Foreground(lipgloss.Color("10"))
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "Handshake").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 1 && row >= 0 && row < len(live) && live[row] {
				return okStyle
			}
			return cellStyle
		})

	fmt.Println(t.Render())

	for i := range live {
		if live[i] {
			fmt.Printf("\nController found on %s. Run missions with --port %s\n", rows[i][0], rows[i][0])
			if cm, err := readDistance(rows[i][0], c.Baud); err == nil {
				fmt.Printf("Ultrasonic range check: %.1f cm\n", cm)
			}
			return nil
		}
	}
	if !c.Skip {
		fmt.Fprintln(os.Stderr, "\nNo controller answered. Check wiring and power.")
	}
	return nil
}

// readDistance asks the firmware for an ultrasonic reading, as a sensor
// sanity check on top of the PING handshake.
func readDistance(port string, baud int) (float64, error) {
	client, err := protocol.Dial(port, baud, 2*time.Second)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return 0, err
	}
	payload, err := client.Query(ctx, protocol.ReadDistance(), protocol.DistanceTag)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(payload, 64)
}
