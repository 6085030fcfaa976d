// Command ui is a reviewer dashboard over the appraisal HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"sync"
	"time"

	"gioui.org/app"
	"gioui.org/font"
	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"staff-appraisal/pkg/audit"
	"staff-appraisal/pkg/efficiency"
	"staff-appraisal/pkg/task"
	"staff-appraisal/pkg/workflow"
)

var theme *material.Theme

const (
	pageDashboard = iota
	pageTasks
	pageReviews
	pageRankings
	pageEvents
)

var (
	grey   = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	amber  = color.NRGBA{R: 0xFF, G: 0xA0, B: 0x00, A: 0xFF}
	blue   = color.NRGBA{R: 0x00, G: 0xA0, B: 0xFF, A: 0xFF}
	green  = color.NRGBA{R: 0x00, G: 0xC0, B: 0x00, A: 0xFF}
	red    = color.NRGBA{R: 0xC0, G: 0x30, B: 0x30, A: 0xFF}
	purple = color.NRGBA{R: 0xA0, G: 0x60, B: 0xE0, A: 0xFF}
)

// reviewRow holds the widgets of one subtask awaiting review. Rows are keyed
// by subtask ID so a refresh does not reset a half-made choice.
type reviewRow struct {
	quality  widget.Enum
	complete widget.Clickable
	rework   widget.Clickable
}

type UI struct {
	api    *client
	window *app.Window

	currentPage int

	navDashboard widget.Clickable
	navTasks     widget.Clickable
	navReviews   widget.Clickable
	navRankings  widget.Clickable
	navEvents    widget.Clickable
	refreshBtn   widget.Clickable

	taskList   widget.List
	reviewList widget.List
	rankList   widget.List
	eventList  widget.List
	rows       map[string]*reviewRow

	mu       sync.Mutex
	stats    workflow.Stats
	tasks    []task.Task
	reviews  []task.Subtask
	rankings []workflow.Ranking
	events   []audit.Event
	message  string
}

func main() {
	base := flag.String("api", envOr("API_BASE", "http://localhost:8080"), "appraisal API base URL")
	actor := flag.String("as", os.Getenv("APPRAISAL_STAFF_ID"), "reviewer staff id sent with every decision")
	flag.Parse()

	theme = material.NewTheme()
	theme.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	theme.Palette.Bg = color.NRGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xFF}
	theme.Palette.Fg = color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	theme.Palette.ContrastBg = color.NRGBA{R: 0x30, G: 0x60, B: 0xA0, A: 0xFF}
	theme.Palette.ContrastFg = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	ui := &UI{
		api:    newClient(*base, *actor),
		window: new(app.Window),
		rows:   map[string]*reviewRow{},
	}
	ui.taskList.Axis = layout.Vertical
	ui.reviewList.Axis = layout.Vertical
	ui.rankList.Axis = layout.Vertical
	ui.eventList.Axis = layout.Vertical

	go ui.pollData()

	go func() {
		ui.window.Option(app.Title("staff appraisal"))
		ui.window.Option(app.Size(unit.Dp(1200), unit.Dp(800)))
		if err := ui.run(); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (ui *UI) run() error {
	var ops op.Ops
	for {
		switch e := ui.window.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			ui.mu.Lock()
			ui.handleClicks(gtx)
			ui.layout(gtx)
			ui.mu.Unlock()
			e.Frame(gtx.Ops)
		}
	}
}

// handleClicks runs with ui.mu held.
func (ui *UI) handleClicks(gtx layout.Context) {
	for page, btn := range map[int]*widget.Clickable{
		pageDashboard: &ui.navDashboard,
		pageTasks:     &ui.navTasks,
		pageReviews:   &ui.navReviews,
		pageRankings:  &ui.navRankings,
		pageEvents:    &ui.navEvents,
	} {
		if btn.Clicked(gtx) {
			ui.currentPage = page
		}
	}
	if ui.refreshBtn.Clicked(gtx) {
		go ui.fetchAll()
	}
	for _, st := range ui.reviews {
		row := ui.row(st.ID)
		if row.complete.Clicked(gtx) {
			if row.quality.Value == "" {
				ui.message = "Pick a quality rating before completing " + st.Name
				continue
			}
			go ui.decide(st, task.StatusCompleted, row.quality.Value)
		}
		if row.rework.Clicked(gtx) {
			go ui.decide(st, task.StatusRework, "")
		}
	}
}

func (ui *UI) row(id string) *reviewRow {
	r, ok := ui.rows[id]
	if !ok {
		r = &reviewRow{}
		ui.rows[id] = r
	}
	return r
}

func (ui *UI) layout(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Rigid(ui.layoutNav),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.UniformInset(unit.Dp(16)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				switch ui.currentPage {
				case pageTasks:
					return ui.layoutTasks(gtx)
				case pageReviews:
					return ui.layoutReviews(gtx)
				case pageRankings:
					return ui.layoutRankings(gtx)
				case pageEvents:
					return ui.layoutEvents(gtx)
				default:
					return ui.layoutDashboard(gtx)
				}
			})
		}),
	)
}

func (ui *UI) layoutNav(gtx layout.Context) layout.Dimensions {
	gtx.Constraints.Min.X = gtx.Dp(unit.Dp(180))
	gtx.Constraints.Max.X = gtx.Dp(unit.Dp(180))
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Top: unit.Dp(16), Bottom: unit.Dp(16), Left: unit.Dp(12)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				label := material.H6(theme, "appraisal")
				label.Color = theme.Palette.ContrastFg
				return label.Layout(gtx)
			})
		}),
		layout.Rigid(navBtn(&ui.navDashboard, "Dashboard", ui.currentPage == pageDashboard)),
		layout.Rigid(navBtn(&ui.navTasks, "Tasks", ui.currentPage == pageTasks)),
		layout.Rigid(navBtn(&ui.navReviews, fmt.Sprintf("Reviews (%d)", len(ui.reviews)), ui.currentPage == pageReviews)),
		layout.Rigid(navBtn(&ui.navRankings, "Rankings", ui.currentPage == pageRankings)),
		layout.Rigid(navBtn(&ui.navEvents, "Audit", ui.currentPage == pageEvents)),
	)
}

func navBtn(btn *widget.Clickable, label string, active bool) layout.Widget {
	return func(gtx layout.Context) layout.Dimensions {
		return layout.Inset{Top: unit.Dp(2), Bottom: unit.Dp(2), Left: unit.Dp(8), Right: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			b := material.Button(theme, btn, label)
			b.Background = color.NRGBA{A: 0}
			if active {
				b.Background = theme.Palette.ContrastBg
			}
			b.Color = theme.Palette.Fg
			return b.Layout(gtx)
		})
	}
}

func heading(title string) layout.FlexChild {
	return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
		return material.H5(theme, title).Layout(gtx)
	})
}

func line(style func(*material.Theme, string) material.LabelStyle, s string, c color.NRGBA, bold bool) layout.FlexChild {
	return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
		l := style(theme, s)
		if c.A != 0 {
			l.Color = c
		}
		if bold {
			l.Font.Weight = font.Bold
		}
		return l.Layout(gtx)
	})
}

func (ui *UI) layoutDashboard(gtx layout.Context) layout.Dimensions {
	children := []layout.FlexChild{
		heading("Dashboard"),
		layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
		line(material.Body1, fmt.Sprintf("Tasks: %d", ui.stats.Tasks), color.NRGBA{}, false),
		line(material.Body1, fmt.Sprintf("Pending subtasks: %d", ui.stats.PendingSubtasks), color.NRGBA{}, false),
		line(material.Body1, fmt.Sprintf("Awaiting review: %d", len(ui.reviews)), color.NRGBA{}, false),
		line(material.Body1, fmt.Sprintf("Audit events: %d", ui.stats.AuditEvents), color.NRGBA{}, false),
		layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
		layout.Rigid(material.Button(theme, &ui.refreshBtn, "Refresh").Layout),
	}
	if ui.message != "" {
		children = append(children,
			layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
			line(material.Body2, ui.message, amber, false))
	}
	return layout.Flex{Axis: layout.Vertical, Spacing: layout.SpaceEnd}.Layout(gtx, children...)
}

func statusColor(s string) color.NRGBA {
	switch s {
	case string(task.StatusPending):
		return amber
	case string(task.StatusInProgress):
		return blue
	case string(task.StatusReview):
		return purple
	case string(task.StatusRework):
		return red
	case string(task.StatusCompleted):
		return green
	}
	return grey
}

func (ui *UI) layoutTasks(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		heading("Tasks"),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.taskList).Layout(gtx, len(ui.tasks), func(gtx layout.Context, i int) layout.Dimensions {
				t := ui.tasks[i]
				return layout.Inset{Bottom: unit.Dp(6)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
						line(material.Body2, t.Name, color.NRGBA{}, true),
						line(material.Caption, fmt.Sprintf("[%s] %s  due %s  %d of %d subtasks pending",
							t.Status, t.DepartmentID, t.DueDate.Format("2006-01-02"), t.PendingSubtasksCount, t.SubtaskCount),
							statusColor(string(t.Status)), false),
					)
				})
			})
		}),
	)
}

func (ui *UI) layoutReviews(gtx layout.Context) layout.Dimensions {
	qualities := efficiency.Qualities()
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		heading("Awaiting review"),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.reviewList).Layout(gtx, len(ui.reviews), func(gtx layout.Context, i int) layout.Dimensions {
				st := ui.reviews[i]
				row := ui.row(st.ID)
				return layout.Inset{Bottom: unit.Dp(12)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
						line(material.Body2, fmt.Sprintf("[%s] %s", st.Priority, st.Name), color.NRGBA{}, true),
						line(material.Caption, fmt.Sprintf("assignee %s  due %s  reworked %d times",
							st.AssigneeID, st.DueDate.Format("2006-01-02 15:04"), st.ReworkCount), grey, false),
						layout.Rigid(func(gtx layout.Context) layout.Dimensions {
							radios := make([]layout.FlexChild, 0, len(qualities))
							for _, q := range qualities {
								radios = append(radios, layout.Rigid(material.RadioButton(theme, &row.quality, q.String(), q.String()).Layout))
							}
							return layout.Flex{}.Layout(gtx, radios...)
						}),
						layout.Rigid(func(gtx layout.Context) layout.Dimensions {
							return layout.Flex{}.Layout(gtx,
								layout.Rigid(material.Button(theme, &row.complete, "Complete").Layout),
								layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
								layout.Rigid(func(gtx layout.Context) layout.Dimensions {
									btn := material.Button(theme, &row.rework, "Rework")
									btn.Background = red
									return btn.Layout(gtx)
								}),
							)
						}),
					)
				})
			})
		}),
	)
}

func (ui *UI) layoutRankings(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		heading("Rankings"),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.rankList).Layout(gtx, len(ui.rankings), func(gtx layout.Context, i int) layout.Dimensions {
				r := ui.rankings[i]
				return layout.Inset{Bottom: unit.Dp(4)}.Layout(gtx,
					material.Body2(theme, fmt.Sprintf("#%d  %3d%%  %s (%s), %d completed",
						r.Rank, r.OverallEfficiency, r.Name, r.DepartmentID, r.TasksCompletedCount)).Layout)
			})
		}),
	)
}

func (ui *UI) layoutEvents(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		heading("Audit"),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.eventList).Layout(gtx, len(ui.events), func(gtx layout.Context, i int) layout.Dimensions {
				e := ui.events[i]
				return layout.Inset{Bottom: unit.Dp(4)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
						line(material.Body2, fmt.Sprintf("[%s] %s by %s", e.Timestamp.Format("15:04:05"), e.Type, e.Actor), color.NRGBA{}, true),
						line(material.Caption, short(e.SubjectID)+"  "+short(e.Hash), grey, false),
					)
				})
			})
		}),
	)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func (ui *UI) pollData() {
	ui.fetchAll()
	ticker := time.NewTicker(5 * time.Second)
	for range ticker.C {
		ui.fetchAll()
	}
}

func (ui *UI) fetchAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := loadSnapshot(ctx, ui.api)
	if err != nil {
		log.Printf("refresh: %v", err)
	}
	ui.mu.Lock()
	ui.stats, ui.tasks, ui.reviews, ui.rankings, ui.events = s.stats, s.tasks, s.reviews, s.rankings, s.events
	for id := range ui.rows {
		if !s.inReview(id) {
			delete(ui.rows, id)
		}
	}
	ui.mu.Unlock()
	ui.window.Invalidate()
}

func (ui *UI) decide(st task.Subtask, status task.Status, quality string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := describe(st, status, quality)
	res, err := ui.api.review(ctx, st.ID, status, quality)
	if err != nil {
		msg = err.Error()
	} else if res.Efficiency != nil {
		msg = fmt.Sprintf("%s: efficiency %d, overall %d", msg, *res.Efficiency, *res.OverallEfficiency)
	}
	ui.mu.Lock()
	ui.message = msg
	ui.mu.Unlock()
	ui.fetchAll()
}

func describe(st task.Subtask, status task.Status, quality string) string {
	if status == task.StatusRework {
		return st.Name + " sent back for rework"
	}
	return fmt.Sprintf("%s completed as %s", st.Name, quality)
}
