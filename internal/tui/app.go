// Package tui provides a k9s-style terminal browser for relay task runs and tools.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
	"github.com/klubi/relay/pkg/client"
)

const (
	viewRuns  = "taskruns"
	viewTools = "tools"

	refreshInterval = 2 * time.Second
	requestTimeout  = 10 * time.Second
)

// App polls the relay API and shows task runs or tools in a navigable table.
type App struct {
	app         *tview.Application
	pages       *tview.Pages
	header      *tview.TextView
	footer      *tview.TextView
	table       *tview.Table
	filterInput *tview.InputField
	detailView  *tview.TextView
	content     *tview.Flex
	mainFlex    *tview.Flex

	client *client.Client

	mu          sync.Mutex
	currentView string
	filter      string
	runs        []v1alpha1.TaskRun
	tools       []client.ToolDescriptor
	lastErr     error

	describeOpen bool
	filterOpen   bool
}

// NewApp builds the UI on top of an API client.
func NewApp(c *client.Client) *App {
	a := &App{
		app:         tview.NewApplication(),
		client:      c,
		currentView: viewRuns,
	}

	a.header = tview.NewTextView().SetDynamicColors(true)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)
	a.footer = tview.NewTextView().SetDynamicColors(true)
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	a.table = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetSeparator(tview.Borders.Vertical)
	a.table.SetBorderPadding(0, 0, 1, 1)

	a.filterInput = tview.NewInputField().
		SetLabel(" Filter: ").
		SetFieldWidth(40).
		SetFieldBackgroundColor(tcell.ColorBlack).
		SetLabelColor(tcell.ColorYellow)
	a.filterInput.SetDoneFunc(a.filterDone)

	a.detailView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	a.detailView.SetBorder(true).
		SetTitle(" Describe ").
		SetBorderColor(tcell.ColorDodgerBlue)

	a.content = tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(a.table, 0, 1, true)
	a.mainFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(a.content, 0, 1, true).
		AddItem(a.footer, 1, 0, false)
	a.pages = tview.NewPages().AddPage("main", a.mainFlex, true, true)

	a.updateHeader()
	a.updateFooter()
	a.app.SetInputCapture(a.handleKey)
	a.app.SetRoot(a.pages, true).SetFocus(a.table)

	return a
}

// Run performs a first refresh, starts the poller and blocks in the event loop.
func (a *App) Run() error {
	a.refresh()
	a.updateTable()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.refreshAsync()
			}
		}
	}()

	return a.app.Run()
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if a.filterOpen {
		return event
	}
	if a.describeOpen && event.Key() == tcell.KeyEscape {
		a.hideDescribe()
		return nil
	}

	switch event.Key() {
	case tcell.KeyEnter:
		a.showDescribe()
		return nil
	case tcell.KeyEscape:
		a.setFilter("")
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case '1':
			a.switchView(viewRuns)
		case '2':
			a.switchView(viewTools)
		case '/':
			a.showFilter()
		case 'q':
			a.app.Stop()
		case 'r':
			go a.refreshAsync()
		case 'd':
			a.confirmDelete()
		case 'j':
			if row, _ := a.table.GetSelection(); row < a.table.GetRowCount()-1 {
				a.table.Select(row+1, 0)
			}
		case 'k':
			if row, _ := a.table.GetSelection(); row > 1 {
				a.table.Select(row-1, 0)
			}
		default:
			return event
		}
		return nil
	}
	return event
}

func (a *App) switchView(view string) {
	a.mu.Lock()
	a.currentView = view
	a.mu.Unlock()

	a.hideDescribe()
	a.updateHeader()
	go a.refreshAsync()
}

func (a *App) view() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentView
}

func (a *App) refreshAsync() {
	a.refresh()
	a.app.QueueUpdateDraw(a.updateTable)
}

func (a *App) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch a.view() {
	case viewRuns:
		runs, err := a.client.ListTaskRuns(ctx, client.ListOptions{})
		a.mu.Lock()
		a.runs, a.lastErr = runs, err
		a.mu.Unlock()
	case viewTools:
		tools, err := a.client.ListTools(ctx)
		a.mu.Lock()
		a.tools, a.lastErr = tools, err
		a.mu.Unlock()
	}
}

func (a *App) updateTable() {
	a.mu.Lock()
	view := a.currentView
	filter := strings.ToLower(a.filter)
	err := a.lastErr
	runs := a.runs
	tools := a.tools
	a.mu.Unlock()

	a.table.Clear()
	if err != nil {
		a.setTableHeaders([]string{"ERROR"})
		a.table.SetCell(1, 0, tview.NewTableCell("Error: "+err.Error()).SetTextColor(tcell.ColorRed))
		return
	}

	switch view {
	case viewRuns:
		a.renderRuns(runs, filter)
	case viewTools:
		a.renderTools(tools, filter)
	}
	if a.table.GetRowCount() > 1 {
		a.table.Select(1, 0)
	}
}

func (a *App) setTableHeaders(headers []string) {
	for col, h := range headers {
		a.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorWhite).
			SetBackgroundColor(tcell.ColorDarkCyan).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false).
			SetExpansion(1))
	}
}

func (a *App) renderRuns(runs []v1alpha1.TaskRun, filter string) {
	a.setTableHeaders([]string{"NAME", "TYPE", "PHASE", "DURATION", "AGE"})

	row := 1
	for _, r := range runs {
		cells := runRow(r)
		if !matchesFilter(filter, cells...) {
			continue
		}
		for col, text := range cells {
			cell := tview.NewTableCell(text).SetExpansion(1)
			if col == 2 {
				cell.SetTextColor(phaseColor(text))
			}
			a.table.SetCell(row, col, cell)
		}
		row++
	}
}

func (a *App) renderTools(tools []client.ToolDescriptor, filter string) {
	a.setTableHeaders([]string{"NAME", "PARAMS", "DESCRIPTION"})

	row := 1
	for _, t := range tools {
		params := fmt.Sprintf("%d", len(t.Parameters.Params))
		if !matchesFilter(filter, t.Name, t.Description) {
			continue
		}
		a.table.SetCell(row, 0, tview.NewTableCell(t.Name).SetExpansion(1))
		a.table.SetCell(row, 1, tview.NewTableCell(params).SetExpansion(1))
		a.table.SetCell(row, 2, tview.NewTableCell(t.Description).SetExpansion(3))
		row++
	}
}

func (a *App) selectedName() (string, bool) {
	row, _ := a.table.GetSelection()
	if row < 1 || row >= a.table.GetRowCount() {
		return "", false
	}
	return a.table.GetCell(row, 0).Text, true
}

func (a *App) showDescribe() {
	name, ok := a.selectedName()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var detail string
	switch a.view() {
	case viewRuns:
		run, err := a.client.GetTaskRun(ctx, name)
		if err != nil {
			detail = fmt.Sprintf("[red]Error: %v[-]", err)
		} else {
			detail = describeRun(run)
		}
	case viewTools:
		tool, err := a.client.GetTool(ctx, name)
		if err != nil {
			detail = fmt.Sprintf("[red]Error: %v[-]", err)
		} else {
			detail = describeTool(tool)
		}
	}

	a.detailView.SetText(detail).ScrollToBeginning()
	if !a.describeOpen {
		a.content.AddItem(a.detailView, 0, 1, false)
		a.describeOpen = true
	}
}

func (a *App) hideDescribe() {
	if !a.describeOpen {
		return
	}
	a.content.RemoveItem(a.detailView)
	a.describeOpen = false
	a.app.SetFocus(a.table)
}

func (a *App) setFilter(f string) {
	a.mu.Lock()
	a.filter = f
	a.mu.Unlock()
	a.updateHeader()
	a.updateTable()
}

func (a *App) filterDone(key tcell.Key) {
	switch key {
	case tcell.KeyEnter:
		a.hideFilter()
		a.setFilter(a.filterInput.GetText())
	case tcell.KeyEscape:
		a.filterInput.SetText("")
		a.hideFilter()
		a.setFilter("")
	}
}

func (a *App) showFilter() {
	if a.filterOpen {
		return
	}
	a.filterOpen = true
	a.mu.Lock()
	a.filterInput.SetText(a.filter)
	a.mu.Unlock()

	a.mainFlex.RemoveItem(a.footer)
	a.mainFlex.AddItem(a.filterInput, 1, 0, true)
	a.app.SetFocus(a.filterInput)
}

func (a *App) hideFilter() {
	if !a.filterOpen {
		return
	}
	a.filterOpen = false
	a.mainFlex.RemoveItem(a.filterInput)
	a.mainFlex.AddItem(a.footer, 1, 0, false)
	a.app.SetFocus(a.table)
}

// confirmDelete asks before deleting the selected run. Tools are read-only.
func (a *App) confirmDelete() {
	if a.view() != viewRuns {
		return
	}
	name, ok := a.selectedName()
	if !ok {
		return
	}

	modal := tview.NewModal().
		SetText(fmt.Sprintf("Delete taskrun %q?", name)).
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			a.pages.RemovePage("confirm")
			a.app.SetFocus(a.table)
			if label == "Delete" {
				go a.deleteRun(name)
			}
		})
	modal.SetBackgroundColor(tcell.ColorDarkRed)
	a.pages.AddPage("confirm", modal, true, true)
}

func (a *App) deleteRun(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := a.client.DeleteTaskRun(ctx, name); err != nil {
		a.app.QueueUpdateDraw(func() {
			a.footer.SetText(fmt.Sprintf(" [red]Delete failed: %v[-]", err))
		})
		time.Sleep(3 * time.Second)
		a.app.QueueUpdateDraw(a.updateFooter)
		return
	}
	a.refreshAsync()
}

func (a *App) updateHeader() {
	a.mu.Lock()
	view, filter := a.currentView, a.filter
	a.mu.Unlock()

	a.header.SetText(headerText(a.client.BaseURL(), view, filter))
}

func (a *App) updateFooter() {
	a.footer.SetText(" [yellow]<enter>[white]Describe  [yellow]<d>[white]Delete  [yellow]</>[white]Filter  [yellow]<r>[white]Refresh  [yellow]<esc>[white]Back  [yellow]<q>[white]Quit")
}
