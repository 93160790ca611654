package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/agribotics/agribot/pkg/calib"
	"github.com/agribotics/agribot/pkg/mission"
)

type MonitorCommand struct {
	Port          string   `long:"port" description:"Serial port (overrides calibration)"`
	Config        string   `long:"config" default:"calibration.json" description:"Calibration file"`
	Report        string   `long:"report" default:"report.json" description:"Mission event log"`
	SingleShot    bool     `long:"single-shot" description:"Stop after the first spray"`
	Classes       []string `long:"class" description:"Spray target class (repeatable, default weed)"`
	MinConfidence float64  `long:"min-confidence" default:"0.5" description:"Detection confidence floor"`
}

const (
	monHeaderHeight = 2
	monLegendHeight = 2
	monFooterHeight = 7
	monMaxLogs      = 5
	monBorderSize   = 2
)

const (
	seriesOffset = "offset"
	seriesArm    = "arm"
)

var seriesColors = map[string]string{
	seriesOffset: "51",  // cyan
	seriesArm:    "208", // orange
}

var (
	monTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	monChartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	monStatusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	monStateStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	monAlertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type monitorModel struct {
	seq      *mission.Sequencer
	chart    *streamlinechart.Model
	width    int
	height   int
	logs     []string
	snap     mission.Snapshot
	quitting bool
}

type missionStateMsg mission.Snapshot
type missionLogMsg string

func waitForMissionState(seq *mission.Sequencer) tea.Cmd {
	return func() tea.Msg {
		return missionStateMsg(<-seq.States())
	}
}

func waitForMissionLog(seq *mission.Sequencer) tea.Cmd {
	return func() tea.Msg {
		return missionLogMsg(<-seq.Logs())
	}
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > monMaxLogs {
		m.logs = m.logs[len(m.logs)-monMaxLogs:]
	}
}

func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = m.width - monBorderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - monHeaderHeight - monLegendHeight - monFooterHeight - monBorderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialMonitorModel(seq *mission.Sequencer, cfg calib.Config) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-cfg.ImageCenterX(), cfg.ImageCenterX()),
	)
	for name, color := range seriesColors {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	return monitorModel{
		seq:   seq,
		chart: &chart,
		snap:  seq.Snapshot(),
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		waitForMissionState(m.seq),
		waitForMissionLog(m.seq),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.seq.Stop()
			return m, tea.Quit
		case "e":
			// Operator emergency stop.
			go m.seq.EmergencyStop(context.Background())
			return m, nil
		}

	case missionStateMsg:
		m.snap = mission.Snapshot(msg)
		if m.snap.HasTarget {
			m.chart.PushDataSet(seriesOffset, m.snap.TargetOffsetPx)
		}
		m.chart.PushDataSet(seriesArm, m.snap.ArmExtensionCm)
		m.chart.DrawAll()
		return m, waitForMissionState(m.seq)

	case missionLogMsg:
		m.addLog(string(msg))
		return m, waitForMissionLog(m.seq)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Mission stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(monTitleStyle.Render("AgriBot Monitor"))
	sb.WriteString("  ")
	sb.WriteString(monStateStyle.Render(strings.ToUpper(m.snap.State.String())))
	sb.WriteString(monStatusStyle.Render(fmt.Sprintf("  sprayed: %d  arm: %.1fcm", m.snap.SprayCount, m.snap.ArmExtensionCm)))
	if !m.snap.DeviceReady {
		sb.WriteString("  ")
		sb.WriteString(monAlertStyle.Render("CAMERA NOT READY"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(monChartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderMonitorLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9"))

	var logLines string
	if len(m.logs) == 0 {
		logLines = monStatusStyle.Render("Press 'q' to quit, 'e' for emergency stop")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderMonitorLegend() string {
	labels := map[string]string{
		seriesOffset: "target offset (px)",
		seriesArm:    "arm extension (cm)",
	}
	var items []string
	for _, name := range []string{seriesOffset, seriesArm} {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+labels[name])
	}
	return strings.Join(items, "  ")
}

func (c *MonitorCommand) Execute(args []string) error {
	cfg, found, err := calib.Load(c.Config)
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("No calibration found, using defaults. Run 'agribot tune' first.")
	}
	if c.Port != "" {
		cfg.SerialPort = c.Port
	}

	seq, client, err := buildMission(cfg, c.Report, c.Classes, c.MinConfidence, c.SingleShot)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := seq.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Mission error: %v", err)
		}
	}()

	p := tea.NewProgram(initialMonitorModel(seq, cfg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	return nil
}
