// Package tui is the server's terminal dashboard: live block/settings state,
// last-run results, and the activity log.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/codesheet/codesheet-engine/internal/generator"
	"github.com/codesheet/codesheet-engine/internal/history"
	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

// App is the tview-based dashboard.
type App struct {
	App     *tview.Application
	store   *history.Store
	planner *generator.Planner
	port    string

	flex *tview.Flex

	blocksTable *tview.Table
	resultsView *tview.TextView
	statusBox   *tview.TextView
	logsArea    *tview.TextView

	logs      []string
	maxLogs   int
	startTime time.Time
}

// NewApp creates the dashboard over the shared store and planner.
func NewApp(store *history.Store, planner *generator.Planner, port string) *App {
	a := &App{
		App:       tview.NewApplication(),
		store:     store,
		planner:   planner,
		port:      port,
		logs:      make([]string, 0),
		maxLogs:   100,
		startTime: time.Now(),
	}

	a.setupUI()

	store.Subscribe(func() {
		a.App.QueueUpdateDraw(func() {
			a.refreshAll()
		})
	})

	return a
}

func (a *App) setupUI() {
	a.blocksTable = tview.NewTable()
	a.blocksTable.SetBorder(true)
	a.blocksTable.SetTitle("Blocks")

	a.resultsView = tview.NewTextView()
	a.resultsView.SetBorder(true)
	a.resultsView.SetTitle("Last Run")
	a.resultsView.SetDynamicColors(true)

	a.statusBox = tview.NewTextView()
	a.statusBox.SetBorder(true)
	a.statusBox.SetTitle("Server Status")
	a.statusBox.SetDynamicColors(true)

	a.logsArea = tview.NewTextView()
	a.logsArea.SetBorder(true)
	a.logsArea.SetTitle("Activity")
	a.logsArea.SetDynamicColors(true)
	a.logsArea.SetScrollable(true)
	a.logsArea.SetChangedFunc(func() {
		a.App.Draw()
	})

	topRow := tview.NewFlex().
		AddItem(a.blocksTable, 0, 2, false).
		AddItem(a.resultsView, 0, 1, false).
		AddItem(a.statusBox, 0, 1, false)

	a.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(a.logsArea, 0, 1, false)

	a.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEsc:
			a.App.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q':
				a.App.Stop()
				return nil
			case 'g':
				a.triggerGenerate()
				return nil
			case 'u':
				if a.store.Undo() {
					a.AddLog("Undo applied", "info")
				} else {
					a.AddLog("Nothing to undo", "warning")
				}
				return nil
			case 'r':
				if a.store.Redo() {
					a.AddLog("Redo applied", "info")
				} else {
					a.AddLog("Nothing to redo", "warning")
				}
				return nil
			}
		}
		return event
	})

	a.App.SetRoot(a.flex, true)
}

// Run starts the TUI
func (a *App) Run() error {
	a.refreshAll()

	go a.refreshTicker()

	return a.App.Run()
}

func (a *App) refreshTicker() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		a.App.QueueUpdateDraw(func() {
			a.refreshStatus()
		})
	}
}

func (a *App) triggerGenerate() {
	if a.store.Generating() {
		a.AddLog("A generation run is already in flight", "warning")
		return
	}

	blocks := a.store.Blocks()
	settings := a.store.Settings()
	total, delegated := a.planner.WillDelegate(blocks, settings)
	if total == 0 {
		a.AddLog("Nothing to generate: all blocks are empty", "warning")
		return
	}

	a.store.SetGenerating(true)
	a.AddLog(fmt.Sprintf("Generating %d item(s)...", total), "info")

	go func() {
		result, err := a.planner.Generate(blocks, settings, func(p generator.Progress) {
			a.store.SetProgress(p)
		})
		if err != nil {
			a.store.SetGenerating(false)
			a.AddLog(fmt.Sprintf("Generation failed: %v", err), "error")
			return
		}
		a.store.SetResults(result)
		a.AddLog(fmt.Sprintf("Generated %d code(s), %d error(s)%s",
			len(result.Codes), len(result.Errors), delegatedTag(delegated)), "info")
	}()
}

func delegatedTag(delegated bool) string {
	if delegated {
		return " (delegated)"
	}
	return ""
}

func (a *App) refreshAll() {
	a.refreshBlocks()
	a.refreshResults()
	a.refreshStatus()
}

func (a *App) refreshBlocks() {
	a.blocksTable.Clear()

	headers := []string{"Subtitle", "Type", "Format", "Size", "Items"}
	for col, h := range headers {
		a.blocksTable.SetCell(0, col, tview.NewTableCell(h).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	settings := a.store.Settings()
	delimiter := generator.ResolveDelimiter(settings)

	for i, b := range a.store.Blocks() {
		row := i + 1
		subtitle := b.Subtitle
		if subtitle == "" {
			subtitle = "(untitled)"
		}

		format := string(b.QRErrorCorrection)
		if b.CodeType == sheetformat.CodeTypeBarcode {
			format = string(b.BarcodeFormat)
		}

		a.blocksTable.SetCell(row, 0, tview.NewTableCell(subtitle))
		a.blocksTable.SetCell(row, 1, tview.NewTableCell(string(b.CodeType)))
		a.blocksTable.SetCell(row, 2, tview.NewTableCell(format))
		a.blocksTable.SetCell(row, 3, tview.NewTableCell(string(b.SizeOverride)))
		a.blocksTable.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%d", len(generator.Split(b.Content, delimiter)))))
	}
}

func (a *App) refreshResults() {
	codes, errs := a.store.Results()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[green]%d code(s)[white]  [red]%d error(s)[white]\n\n", len(codes), len(errs))

	for _, e := range errs {
		fmt.Fprintf(&sb, "[red]line %d[white] %s: %s\n", e.LineNumber, e.Kind, truncateText(e.Text, 24))
	}

	a.resultsView.SetText(sb.String())
}

func (a *App) refreshStatus() {
	uptime := time.Since(a.startTime)
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60

	state := "[green]idle[white]"
	if a.store.Generating() {
		p := a.store.Progress()
		state = fmt.Sprintf("[yellow]generating %d/%d[white]", p.Current, p.Total)
	}

	status := fmt.Sprintf(`%s

Uptime: %dh %dm
API: :%s
Undo: %v  Redo: %v

Keys: g generate, u undo, r redo, q quit`,
		state, hours, minutes, a.port, a.store.CanUndo(), a.store.CanRedo())

	a.statusBox.SetText(status)
}

// AddLog adds a log entry
func (a *App) AddLog(message string, level string) {
	var color string
	switch level {
	case "error":
		color = "[red]"
	case "warning":
		color = "[yellow]"
	default:
		color = "[white]"
	}

	timeStr := time.Now().Format("15:04:05")
	entry := fmt.Sprintf("%s[%s] %s[white]\n", color, timeStr, message)

	a.logs = append(a.logs, entry)
	if len(a.logs) > a.maxLogs {
		a.logs = a.logs[len(a.logs)-a.maxLogs:]
	}

	a.logsArea.Clear()
	for _, log := range a.logs {
		fmt.Fprint(a.logsArea, log)
	}
	a.logsArea.ScrollToEnd()
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// LogWriter creates an io.Writer that writes to the activity panel
func (a *App) LogWriter() io.Writer {
	return &logWriter{app: a}
}

type logWriter struct {
	app *App
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSpace(string(p))
	if message != "" {
		w.app.AddLog(message, "info")
	}
	return len(p), nil
}
