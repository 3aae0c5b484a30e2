package tui

import (
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/lazytracker/internal/model"
	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

const (
	viewHeader   = "header"
	viewFooter   = "footer"
	viewTasks    = "tasks"
	viewEpics    = "epics"
	viewSubtasks = "subtasks"
	viewDetails  = "details"
	viewHistory  = "history"
	viewForm     = "form"
	viewHelp     = "help"
	viewConfirm  = "confirm"
)

var listViews = []string{viewTasks, viewEpics, viewSubtasks, viewHistory}

type UI struct {
	manager *tracker.Manager
	gui     *gocui.Gui

	tasks    []model.Task
	epics    []model.Epic
	subtasks []model.Subtask
	history  []model.Entity
	progress map[int64]epicProgress

	// opened is the entity shown in the details pane after enter.
	opened model.Entity

	selectedTasks    int
	selectedEpics    int
	selectedSubtasks int
	selectedHistory  int
	focus            string

	form        *formState
	formEditor  *formEditor
	helpActive  bool
	confirmKind model.Kind
	status      string
}

type formState struct {
	kind     model.Kind
	entityID int64
	fields   []formField
	index    int
}

type formEditor struct {
	ui *UI
}

func Run(manager *tracker.Manager) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := newUI(manager)
	ui.gui = gui
	gui.Mouse = true

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	if err := ui.load(); err != nil {
		return err
	}

	// changes made elsewhere, e.g. through the web API, redraw the panes
	manager.Observe(func(change tracker.Change) {
		if change.Op == tracker.OpViewed {
			return
		}
		gui.Update(func(*gocui.Gui) error {
			return ui.load()
		})
	})

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}

	return nil
}

func newUI(manager *tracker.Manager) *UI {
	ui := &UI{
		manager: manager,
		focus:   viewTasks,
	}
	ui.formEditor = &formEditor{ui: ui}
	return ui
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'q', gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'r', gocui.ModNone, u.reload); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'a', gocui.ModNone, u.addEntity); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'e', gocui.ModNone, u.editEntity); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'd', gocui.ModNone, u.deleteEntity); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'D', gocui.ModNone, u.askDeleteAll); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'x', gocui.ModNone, u.cycleStatus); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '?', gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyTab, gocui.ModNone, u.switchFocus); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '1', gocui.ModNone, u.focusTasks); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '2', gocui.ModNone, u.focusEpics); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '3', gocui.ModNone, u.focusSubtasks); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '4', gocui.ModNone, u.focusDetails); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '5', gocui.ModNone, u.focusHistory); err != nil {
		return err
	}
	for _, name := range listViews {
		if err := gui.SetKeybinding(name, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, 'j', gocui.ModNone, u.moveDown); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, 'k', gocui.ModNone, u.moveUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.KeyEnter, gocui.ModNone, u.openSelected); err != nil {
			return err
		}
		viewName := name
		if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: viewName, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
			return u.onListClick(gui, viewName, opts)
		}}); err != nil {
			return err
		}
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyCtrlJ, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, gocui.KeyEsc, gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, 'q', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, '?', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, 'y', gocui.ModNone, u.confirmDeleteAll); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, 'n', gocui.ModNone, u.cancelDeleteAll); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, gocui.KeyEsc, gocui.ModNone, u.cancelDeleteAll); err != nil {
		return err
	}
	return u.bindMouseScroll(gui)
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = gocui.ColorDefault
	u.renderHeader(headerView)

	footerY1 := max(maxY-2, 1)
	footerY0 := max(footerY1-2, 1)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	footerView.BgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom < bodyTop {
		return nil
	}

	panes := computeLayout(maxX, bodyBottom-bodyTop+1)
	leftX1 := panes.leftWidth - 1
	rightX0 := leftX1 + 1
	if rightX0 >= maxX {
		rightX0 = leftX1
	}
	rightX1 := maxX - 1

	tasksY1 := bodyTop + panes.tasksHeight - 1
	epicsY1 := tasksY1 + panes.epicsHeight
	detailsY1 := bodyTop + panes.detailsHeight - 1

	tasksView, err := gui.SetView(viewTasks, 0, bodyTop, leftX1, tasksY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		tasksView.Title = "1 Tasks"
	}
	applyViewStyle(tasksView, u.focus == viewTasks, true)
	renderList(tasksView, u.taskLines(), u.selectedTasks, u.focus == viewTasks)

	epicsView, err := gui.SetView(viewEpics, 0, tasksY1+1, leftX1, epicsY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		epicsView.Title = "2 Epics"
		epicsView.TitleColor = gocui.ColorYellow
	}
	applyViewStyle(epicsView, u.focus == viewEpics, true)
	renderList(epicsView, u.epicLines(), u.selectedEpics, u.focus == viewEpics)

	subtasksView, err := gui.SetView(viewSubtasks, 0, epicsY1+1, leftX1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	subtasksView.Title = "3 Subtasks"
	if epic, ok := u.selectedEpic(); ok {
		subtasksView.Title = fmt.Sprintf("3 Subtasks of %s", epic.Name)
	}
	applyViewStyle(subtasksView, u.focus == viewSubtasks, true)
	renderList(subtasksView, u.subtaskLines(), u.selectedSubtasks, u.focus == viewSubtasks)

	detailsView, err := gui.SetView(viewDetails, rightX0, bodyTop, rightX1, detailsY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		detailsView.Title = "4 Details"
		detailsView.Wrap = true
	}
	applyViewStyle(detailsView, u.focus == viewDetails, false)
	u.renderDetails(detailsView)

	historyView, err := gui.SetView(viewHistory, rightX0, detailsY1+1, rightX1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		historyView.Title = "5 History"
		historyView.TitleColor = gocui.ColorGreen
	}
	applyViewStyle(historyView, u.focus == viewHistory, true)
	renderList(historyView, u.historyLines(), u.selectedHistory, u.focus == viewHistory)

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	if u.confirmKind != "" {
		if err := u.showConfirm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewConfirm)
	}

	if gui.CurrentView() == nil {
		_, _ = gui.SetCurrentView(u.focus)
	}

	gui.Cursor = u.form != nil

	return nil
}

type paneLayout struct {
	leftWidth     int
	tasksHeight   int
	epicsHeight   int
	detailsHeight int
}

func computeLayout(width, height int) paneLayout {
	safeWidth := max(width-2, 20)
	safeHeight := max(height, 9)

	leftWidth := safeWidth / 2
	if leftWidth < 30 {
		leftWidth = 30
	}
	if leftWidth > safeWidth-18 {
		leftWidth = safeWidth / 2
	}

	tasksHeight := max(int(float64(safeHeight)*0.4), 3)
	epicsHeight := max(int(float64(safeHeight)*0.3), 3)
	if safeHeight-tasksHeight-epicsHeight < 3 {
		epicsHeight = max(safeHeight-tasksHeight-3, 3)
	}

	detailsHeight := max(int(float64(safeHeight)*0.55), 4)

	return paneLayout{
		leftWidth:     leftWidth,
		tasksHeight:   tasksHeight,
		epicsHeight:   epicsHeight,
		detailsHeight: detailsHeight,
	}
}

// load refreshes every pane from the manager without recording views.
func (u *UI) load() error {
	u.tasks = u.manager.Tasks()
	u.epics = u.manager.Epics()
	u.progress = progressByEpic(u.manager.Subtasks())

	u.selectedTasks = clampIndex(u.selectedTasks, len(u.tasks))
	u.selectedEpics = clampIndex(u.selectedEpics, len(u.epics))

	u.subtasks = nil
	if epic, ok := u.selectedEpic(); ok {
		u.subtasks, _ = u.manager.EpicSubtasks(epic.ID)
	}
	u.selectedSubtasks = clampIndex(u.selectedSubtasks, len(u.subtasks))

	u.history = u.manager.History()
	u.selectedHistory = clampIndex(u.selectedHistory, len(u.history))

	if u.opened != nil {
		u.opened, _ = u.manager.Peek(u.opened.EntityID())
	}
	return nil
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	fmt.Fprintf(view, "Tasks: %d | Epics: %d | Subtasks: %d | Next id: %d",
		len(u.tasks), len(u.epics), len(u.manager.Subtasks()), u.manager.NextID())
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	fmt.Fprintln(view, "a add | e edit | d delete | D delete all | x status | enter open | tab cycle | 1-5 panes")
	fmt.Fprintln(view, "r reload | ? help | q quit")
	if u.status != "" {
		fmt.Fprint(view, u.status)
	}
}

func renderList(view *gocui.View, lines []string, selected int, focused bool) {
	view.Clear()
	for i, line := range lines {
		prefix := " "
		if i == selected {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, line)
	}
	if focused {
		view.SetCursor(0, min(selected, len(lines)-1))
	}
}

func (u *UI) taskLines() []string {
	lines := make([]string, 0, len(u.tasks))
	for _, task := range u.tasks {
		lines = append(lines, formatSummary(task))
	}
	return lines
}

func (u *UI) epicLines() []string {
	lines := make([]string, 0, len(u.epics))
	for _, epic := range u.epics {
		lines = append(lines, formatEpicSummary(epic, u.progress[epic.ID]))
	}
	return lines
}

func (u *UI) subtaskLines() []string {
	lines := make([]string, 0, len(u.subtasks))
	for _, subtask := range u.subtasks {
		lines = append(lines, formatSummary(subtask))
	}
	return lines
}

func (u *UI) historyLines() []string {
	lines := make([]string, 0, len(u.history))
	for _, entry := range u.history {
		lines = append(lines, fmt.Sprintf("%s #%d %s", strings.ToLower(string(entry.Kind())), entry.EntityID(), entry.Common().Name))
	}
	return lines
}

func (u *UI) renderDetails(view *gocui.View) {
	view.Clear()
	entity := u.opened
	if entity == nil {
		var ok bool
		if entity, ok = u.selectedEntity(); !ok {
			fmt.Fprint(view, "Nothing selected")
			return
		}
	}
	fmt.Fprint(view, strings.Join(detailLines(entity), "\n"))
}

func (u *UI) onListClick(gui *gocui.Gui, viewName string, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	view, err := gui.View(viewName)
	if err != nil {
		return nil
	}

	_, y0, _, _ := view.Dimensions()
	_, oy := view.Origin()
	row := max(opts.Y-y0-1+oy, 0)

	switch viewName {
	case viewTasks:
		u.selectedTasks = clampIndex(row, len(u.tasks))
	case viewEpics:
		u.selectedEpics = clampIndex(row, len(u.epics))
		u.selectedSubtasks = 0
	case viewSubtasks:
		u.selectedSubtasks = clampIndex(row, len(u.subtasks))
	case viewHistory:
		u.selectedHistory = clampIndex(row, len(u.history))
	default:
		return nil
	}
	return u.setFocus(gui, viewName)
}

func (u *UI) bindMouseScroll(gui *gocui.Gui) error {
	views := append([]string{viewDetails}, listViews...)
	for _, name := range views {
		if err := gui.SetKeybinding(name, gocui.MouseWheelUp, gocui.ModNone, u.scrollUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelDown, gocui.ModNone, u.scrollDown); err != nil {
			return err
		}
	}
	return nil
}

func (u *UI) scrollUp(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollUp(1)
	return nil
}

func (u *UI) scrollDown(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollDown(1)
	return nil
}

func (u *UI) selectedEpic() (model.Epic, bool) {
	if u.selectedEpics >= 0 && u.selectedEpics < len(u.epics) {
		return u.epics[u.selectedEpics], true
	}
	return model.Epic{}, false
}

// selectedEntity is the highlighted row of the focused pane.
func (u *UI) selectedEntity() (model.Entity, bool) {
	switch u.focus {
	case viewTasks:
		if u.selectedTasks >= 0 && u.selectedTasks < len(u.tasks) {
			return u.tasks[u.selectedTasks], true
		}
	case viewEpics:
		return u.selectedEpic()
	case viewSubtasks:
		if u.selectedSubtasks >= 0 && u.selectedSubtasks < len(u.subtasks) {
			return u.subtasks[u.selectedSubtasks], true
		}
	case viewHistory:
		if u.selectedHistory >= 0 && u.selectedHistory < len(u.history) {
			return u.history[u.selectedHistory], true
		}
	}
	return nil, false
}

// focusedKind is the kind added or cleared from the focused pane.
func (u *UI) focusedKind() (model.Kind, bool) {
	switch u.focus {
	case viewTasks:
		return model.KindTask, true
	case viewEpics:
		return model.KindEpic, true
	case viewSubtasks:
		return model.KindSubtask, true
	}
	return "", false
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}

	next := viewTasks
	switch u.focus {
	case viewTasks:
		next = viewEpics
	case viewEpics:
		next = viewSubtasks
	case viewSubtasks:
		next = viewDetails
	case viewDetails:
		next = viewHistory
	}
	return u.setFocus(gui, next)
}

func (u *UI) focusTasks(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewTasks)
}

func (u *UI) focusEpics(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewEpics)
}

func (u *UI) focusSubtasks(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewSubtasks)
}

func (u *UI) focusDetails(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewDetails)
}

func (u *UI) focusHistory(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewHistory)
}

func (u *UI) setFocus(gui *gocui.Gui, name string) error {
	if u.inputActive() {
		return nil
	}
	u.focus = name
	u.opened = nil
	if gui != nil {
		_, _ = gui.SetCurrentView(name)
	}
	return u.load()
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.opened = nil
	switch u.focus {
	case viewTasks:
		if u.selectedTasks < len(u.tasks)-1 {
			u.selectedTasks++
		}
	case viewEpics:
		if u.selectedEpics < len(u.epics)-1 {
			u.selectedEpics++
			u.selectedSubtasks = 0
			return u.load()
		}
	case viewSubtasks:
		if u.selectedSubtasks < len(u.subtasks)-1 {
			u.selectedSubtasks++
		}
	case viewHistory:
		if u.selectedHistory < len(u.history)-1 {
			u.selectedHistory++
		}
	}
	return nil
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.opened = nil
	switch u.focus {
	case viewTasks:
		if u.selectedTasks > 0 {
			u.selectedTasks--
		}
	case viewEpics:
		if u.selectedEpics > 0 {
			u.selectedEpics--
			u.selectedSubtasks = 0
			return u.load()
		}
	case viewSubtasks:
		if u.selectedSubtasks > 0 {
			u.selectedSubtasks--
		}
	case viewHistory:
		if u.selectedHistory > 0 {
			u.selectedHistory--
		}
	}
	return nil
}

func (u *UI) reload(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	return u.load()
}

// openSelected shows the selected entity in the details pane and records
// the view in the history.
func (u *UI) openSelected(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected, ok := u.selectedEntity()
	if !ok {
		return nil
	}

	var opened model.Entity
	switch selected.Kind() {
	case model.KindTask:
		opened, ok = u.manager.Task(selected.EntityID())
	case model.KindEpic:
		opened, ok = u.manager.Epic(selected.EntityID())
	case model.KindSubtask:
		opened, ok = u.manager.Subtask(selected.EntityID())
	}
	if !ok {
		u.status = fmt.Sprintf("#%d no longer exists", selected.EntityID())
		return u.load()
	}

	u.status = ""
	if err := u.load(); err != nil {
		return err
	}
	u.opened = opened
	if u.focus == viewHistory {
		u.selectedHistory = max(len(u.history)-1, 0)
	}
	return nil
}

func (u *UI) toggleHelp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	u.closeOverlay(gui, viewHelp)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := 16
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) showConfirm(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(40, maxX/3)
	height := 2
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewConfirm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Confirm"
	}
	view.Clear()
	fmt.Fprintf(view, "Delete every %s? (y/n)", strings.ToLower(string(u.confirmKind)))
	_, _ = gui.SetCurrentView(viewConfirm)
	return nil
}

func (u *UI) addEntity(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	kind, ok := u.focusedKind()
	if !ok {
		return nil
	}

	fields := buildFormFields(kind, nil)
	if kind == model.KindSubtask {
		epic, ok := u.selectedEpic()
		if !ok {
			u.status = "add an epic first"
			return nil
		}
		fields[fieldEpic].Value = fmt.Sprint(epic.ID)
	}
	u.form = &formState{kind: kind, fields: fields}
	return nil
}

func (u *UI) editEntity(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected, ok := u.selectedEntity()
	if !ok {
		return nil
	}
	u.form = &formState{
		kind:     selected.Kind(),
		entityID: selected.EntityID(),
		fields:   buildFormFields(selected.Kind(), selected),
	}
	return nil
}

func (u *UI) showForm(gui *gocui.Gui) error {
	if u.form == nil {
		return nil
	}

	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(10, max(8, maxY/2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	kind := strings.ToLower(string(u.form.kind))
	if u.form.entityID != 0 {
		view.Title = fmt.Sprintf("Edit %s #%d", kind, u.form.entityID)
	} else {
		view.Title = "New " + kind
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) submitForm(gui *gocui.Gui, _ *gocui.View) error {
	if u.form == nil {
		return nil
	}

	task, epicID, err := parseFormFields(u.form.fields)
	if err != nil {
		u.status = err.Error()
		return nil
	}
	task.ID = u.form.entityID

	if err := u.save(u.form.kind, task, epicID); err != nil {
		u.status = err.Error()
		return nil
	}

	u.form = nil
	u.status = ""
	u.closeOverlay(gui, viewForm)
	return u.load()
}

// save adds the entity when task.ID is zero and updates it otherwise.
func (u *UI) save(kind model.Kind, task model.Task, epicID int64) error {
	adding := task.ID == 0
	var ok = true
	var err error

	switch kind {
	case model.KindTask:
		if adding {
			u.manager.AddTask(task)
		} else {
			ok = u.manager.UpdateTask(task)
		}
	case model.KindEpic:
		if adding {
			u.manager.AddEpic(model.Epic{Task: task})
		} else {
			ok = u.manager.UpdateEpic(model.Epic{Task: task})
		}
	case model.KindSubtask:
		subtask := model.Subtask{Task: task, EpicID: epicID}
		if adding {
			_, err = u.manager.AddSubtask(subtask)
		} else {
			ok, err = u.manager.UpdateSubtask(subtask)
		}
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s #%d no longer exists", strings.ToLower(string(kind)), task.ID)
	}
	return nil
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.form = nil
	u.closeOverlay(gui, viewForm)
	return nil
}

func (u *UI) nextFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(view)
	return nil
}

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, field.Value)
	}
	label := u.form.fields[u.form.index].Label + ": "
	cursorX := len([]rune(label)) + len([]rune(u.form.fields[u.form.index].Value)) + 2
	view.SetCursor(cursorX, u.form.index)
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil {
		return false
	}
	field := &ui.form.fields[ui.form.index]

	if isStatusField(field.Label) {
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			field.Value = nextStatus(field.Value)
		case gocui.KeyArrowLeft:
			field.Value = prevStatus(field.Value)
		}
		ui.renderForm(view)
		return true
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderForm(view)
	return true
}

func isStatusField(label string) bool {
	return strings.HasPrefix(label, "Status")
}

func nextStatus(current string) string {
	return stepStatus(current, 1)
}

func prevStatus(current string) string {
	return stepStatus(current, -1)
}

func stepStatus(current string, delta int) string {
	order := model.Statuses
	status, err := model.ParseStatus(current)
	if err != nil {
		status = model.StatusNew
	}
	index := 0
	for i, candidate := range order {
		if candidate == status {
			index = i
			break
		}
	}
	index = (index + delta + len(order)) % len(order)
	return string(order[index])
}

func (u *UI) deleteEntity(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected, ok := u.selectedEntity()
	if !ok {
		return nil
	}

	id := selected.EntityID()
	switch selected.Kind() {
	case model.KindTask:
		ok = u.manager.DeleteTask(id)
	case model.KindEpic:
		ok = u.manager.DeleteEpic(id)
	case model.KindSubtask:
		ok = u.manager.DeleteSubtask(id)
	}
	u.status = ""
	if !ok {
		u.status = fmt.Sprintf("#%d no longer exists", id)
	}
	u.opened = nil
	return u.load()
}

func (u *UI) askDeleteAll(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	kind, ok := u.focusedKind()
	if !ok {
		return nil
	}
	u.confirmKind = kind
	return nil
}

func (u *UI) confirmDeleteAll(gui *gocui.Gui, _ *gocui.View) error {
	switch u.confirmKind {
	case model.KindTask:
		u.manager.DeleteAllTasks()
	case model.KindEpic:
		u.manager.DeleteAllEpics()
	case model.KindSubtask:
		u.manager.DeleteAllSubtasks()
	}
	u.confirmKind = ""
	u.opened = nil
	u.closeOverlay(gui, viewConfirm)
	return u.load()
}

func (u *UI) cancelDeleteAll(gui *gocui.Gui, _ *gocui.View) error {
	u.confirmKind = ""
	u.closeOverlay(gui, viewConfirm)
	return nil
}

// cycleStatus advances NEW, IN_PROGRESS, DONE for tasks and subtasks.
func (u *UI) cycleStatus(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected, ok := u.selectedEntity()
	if !ok {
		return nil
	}

	switch value := selected.(type) {
	case model.Task:
		value.Status = model.Status(nextStatus(string(value.Status)))
		u.manager.UpdateTask(value)
	case model.Subtask:
		value.Status = model.Status(nextStatus(string(value.Status)))
		if _, err := u.manager.UpdateSubtask(value); err != nil {
			u.status = err.Error()
			return nil
		}
	case model.Epic:
		u.status = "epic status follows its subtasks"
		return nil
	}
	u.status = ""
	return u.load()
}

func (u *UI) closeOverlay(gui *gocui.Gui, name string) {
	if gui == nil {
		return
	}
	_ = gui.DeleteView(name)
	_, _ = gui.SetCurrentView(u.focus)
}

func (u *UI) inputActive() bool {
	return u.form != nil || u.helpActive || u.confirmKind != ""
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  Tab cycle panes",
		"  1 Tasks | 2 Epics | 3 Subtasks | 4 Details | 5 History",
		"  j/k or arrows move selection",
		"  mouse click to focus/select, wheel scrolls",
		"",
		"Actions:",
		"  a add (task, epic or subtask of the selected epic)",
		"  e edit | d delete | D delete all of the pane's kind",
		"  x cycle status (tasks and subtasks)",
		"  enter open in details, recorded in history",
		"  space/left/right cycle status (form) | tab next field",
		"",
		"Other:",
		"  r reload | ? help | esc/q close help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
	}
}

func clampIndex(index, length int) int {
	if index >= length {
		index = length - 1
	}
	return max(index, 0)
}
