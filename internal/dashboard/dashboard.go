package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/rapidreset/internal/metrics"
)

const historyLen = 100

// RunConfig holds the run parameters shown in the header.
type RunConfig struct {
	TargetURL   string
	Requests    int
	Concurrency int           // 0 = unbounded
	Wait        time.Duration // launch interval
	Delay       time.Duration // HEADERS to RST_STREAM
	Retries     int
	ConfigFile  string
}

// Dashboard renders a live terminal UI for a run.
type Dashboard struct {
	counters     *metrics.Counters
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid          *ui.Grid
	progressGauge *widgets.Gauge
	rpsSparkline  *widgets.SparklineGroup
	delayPara     *widgets.Paragraph
	summaryPara   *widgets.Paragraph
	countersPara  *widgets.Paragraph
	peerList      *widgets.List
	errorList     *widgets.List

	rpsHistory  []float64
	lastHeaders int64
	lastUpdate  time.Time
	startTime   time.Time
	cfg         RunConfig
}

// New initialises the terminal and builds the dashboard. shutdownFunc is
// called when the user presses q or Ctrl-C.
func New(counters *metrics.Counters, collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}
	d := newDashboard(counters, collector, cfg, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(counters *metrics.Counters, collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	d := &Dashboard{
		counters:     counters,
		collector:    collector,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		rpsHistory:   make([]float64, 0, historyLen),
		startTime:    now,
		lastUpdate:   now,
		cfg:          cfg,
	}
	d.initWidgets()
	return d
}

func (d *Dashboard) initWidgets() {
	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Workers Launched"
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	sparkline := widgets.NewSparkline()
	sparkline.Title = "HEADERS/s"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}
	d.rpsSparkline = widgets.NewSparklineGroup(sparkline)
	d.rpsSparkline.Title = "Send Rate"
	d.rpsSparkline.BorderStyle.Fg = ui.ColorCyan

	d.delayPara = widgets.NewParagraph()
	d.delayPara.Title = "Reset Delay"
	d.delayPara.Text = "Waiting for data..."
	d.delayPara.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.countersPara = widgets.NewParagraph()
	d.countersPara.Title = "Frames"
	d.countersPara.Text = "Waiting for data..."
	d.countersPara.BorderStyle.Fg = ui.ColorCyan

	d.peerList = widgets.NewList()
	d.peerList.Title = "Peer Error Codes"
	d.peerList.Rows = []string{"[None](fg:green)"}
	d.peerList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.peerList.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Worker Errors"
	d.errorList.Rows = []string{"[No failures](fg:green)"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorRed)
	d.errorList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.progressGauge),
		),
		ui.NewRow(0.36,
			ui.NewCol(0.65, d.rpsSparkline),
			ui.NewCol(0.35, d.countersPara),
		),
		ui.NewRow(0.34,
			ui.NewCol(0.3, d.delayPara),
			ui.NewCol(0.35, d.peerList),
			ui.NewCol(0.35, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop ends the update loop and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}
			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the loop once the run has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update(time.Now())
			d.render()
		}
	}
}

// update refreshes every widget from the live counters.
func (d *Dashboard) update(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.counters.Snapshot()
	summary := d.collector.Summary()
	elapsed := now.Sub(d.startTime)

	// Instantaneous rate since the previous tick.
	if dt := now.Sub(d.lastUpdate).Seconds(); dt > 0 {
		rate := float64(snap.HeadersSent-d.lastHeaders) / dt
		d.rpsHistory = append(d.rpsHistory, rate)
		if len(d.rpsHistory) > historyLen {
			d.rpsHistory = d.rpsHistory[1:]
		}
		d.rpsSparkline.Sparklines[0].Data = d.rpsHistory
		d.rpsSparkline.Title = fmt.Sprintf("Send Rate | Current: %.0f/s | Average: %d/s",
			rate, metrics.RequestsPerSecond(snap.HeadersSent, elapsed))
	}
	d.lastHeaders = snap.HeadersSent
	d.lastUpdate = now

	d.progressGauge.Percent = progressPercent(snap.HeadersSent, d.cfg.Requests)
	d.progressGauge.Label = fmt.Sprintf("%d / %d", snap.HeadersSent, d.cfg.Requests)

	d.summaryPara.Text = fmt.Sprintf("Target: %s\n%s\nElapsed: %s | Succeeded: %d | Failed: %d",
		d.cfg.TargetURL,
		formatRunParams(d.cfg),
		elapsed.Round(time.Second),
		summary.Succeeded,
		summary.Failed,
	)

	d.countersPara.Text = fmt.Sprintf(
		"HEADERS sent:      %d\nRST_STREAM sent:   %d\nResponses:         %d\nFrames received:   %d\nRST_STREAM recv:   %d\nGOAWAY recv:       %d\nConnections:       %d",
		snap.HeadersSent,
		snap.ResetsSent,
		snap.EventsReceived,
		snap.FramesReceived,
		snap.ResetsReceived,
		snap.GoAwaysReceived,
		snap.Connections,
	)

	rd := summary.ResetDelay
	d.delayPara.Text = fmt.Sprintf("Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP99:  %.2fms\nMax:  %.2fms",
		rd.MinMs, rd.MeanMs, rd.P50Ms, rd.P90Ms, rd.P99Ms, rd.MaxMs)

	d.peerList.Rows = formatPeerCodeRows(summary.PeerCodes)
	d.errorList.Rows = formatErrorRows(summary.Errors)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

func progressPercent(done int64, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(done * 100 / int64(total))
	if p > 100 {
		p = 100
	}
	return p
}

func formatPeerCodeRows(codes []metrics.PeerCode) []string {
	if len(codes) == 0 {
		return []string{"[None](fg:green)"}
	}
	if len(codes) > 10 {
		codes = codes[:10]
	}
	rows := make([]string, 0, len(codes))
	for _, pc := range codes {
		rows = append(rows, fmt.Sprintf("[%s %s](fg:yellow) %d", pc.Frame, pc.Code, pc.Count))
	}
	return rows
}

func formatErrorRows(errs map[string]int64) []string {
	if len(errs) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	kinds := make([]string, 0, len(errs))
	for k := range errs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if errs[kinds[i]] == errs[kinds[j]] {
			return kinds[i] < kinds[j]
		}
		return errs[kinds[i]] > errs[kinds[j]]
	})
	rows := make([]string, 0, len(kinds))
	for _, k := range kinds {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", k, errs[k]))
	}
	return rows
}

func formatRunParams(cfg RunConfig) string {
	var parts []string

	if cfg.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Concurrency: %d", cfg.Concurrency))
	} else {
		parts = append(parts, "Concurrency: unbounded")
	}
	if cfg.Wait > 0 {
		parts = append(parts, fmt.Sprintf("Wait: %s", cfg.Wait))
	}
	parts = append(parts, fmt.Sprintf("Delay: %s", cfg.Delay))
	if cfg.Retries > 0 {
		parts = append(parts, fmt.Sprintf("Retries: %d", cfg.Retries))
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}
	return strings.Join(parts, " | ")
}
