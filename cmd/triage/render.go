package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/raczniakservices/HVAC/internal/dashboard"
	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/dto"
)

// tableView prints the lead list. In live mode the screen is cleared before
// each render.
type tableView struct {
	mu   sync.Mutex
	out  io.Writer
	live bool
}

func newTableView(out io.Writer, live bool) *tableView {
	return &tableView{out: out, live: live}
}

func (v *tableView) Render(s dashboard.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.live {
		fmt.Fprint(v.out, "\033[H\033[2J")
	}
	printSummary(v.out, s.Summary)
	fmt.Fprintf(v.out, "Updated %s\n\n", dashboard.UpdatedAgo(s.LastFetchAt, time.Now()))

	tw := tabwriter.NewWriter(v.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tCALLER\tSOURCE\tSTATE\tOWNER\tNEXT STEP\tRESULT\tRESPONSE")
	for _, l := range s.Leads {
		state := l.StateLabel
		if l.Overdue && l.OverdueMinutes != nil {
			state = fmt.Sprintf("%s (overdue %dm)", state, *l.OverdueMinutes)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID,
			l.CreatedAt.Local().Format("Jan 2 15:04"),
			l.CallerNumber,
			l.Source,
			state,
			dashboard.OwnerLabel(l.Owner),
			orDash(l.NextStep),
			orDash(l.Outcome),
			orDash(l.ResponseTime))
	}
	_ = tw.Flush()
}

func (v *tableView) Notify(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "! %v\n", err)
}

// lineView reports failures for one-shot mutations.
type lineView struct {
	out io.Writer
	id  int64
}

func newLineView(out io.Writer, id int64) *lineView {
	return &lineView{out: out, id: id}
}

func (v *lineView) Render(dashboard.Snapshot) {}

func (v *lineView) Notify(err error) {
	fmt.Fprintf(v.out, "Lead %d not saved: %v\n", v.id, err)
}

func (v *lineView) printFinal(out io.Writer, s dashboard.Snapshot) {
	for _, l := range s.Leads {
		if l.ID == v.id {
			printLead(out, l)
			return
		}
	}
}

func printLead(out io.Writer, l dto.EventResponse) {
	fmt.Fprintf(out, "Lead %d: %s, owner %s, next step %s, result %s\n",
		l.ID, l.StateLabel, dashboard.OwnerLabel(l.Owner), orDash(l.NextStep), orDash(l.Outcome))
}

func printSummary(out io.Writer, s domain.Summary) {
	fmt.Fprintf(out, "Unhandled %d (overdue %d)  In progress %d  Booked %d  Lost %d  Total %d\n",
		s.Unhandled, s.Overdue, s.InProgress, s.Booked, s.Lost, s.Total)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// promptConfirmer asks on the terminal unless confirmation was given up front.
type promptConfirmer struct {
	in      *bufio.Reader
	out     io.Writer
	assumed bool
}

func newPromptConfirmer(in io.Reader, out io.Writer, assumeYes bool) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out, assumed: assumeYes}
}

func (c *promptConfirmer) ConfirmDelete(lead dto.EventResponse) bool {
	return c.ask(fmt.Sprintf("Lead %d (%s) has no result yet. Delete anyway?", lead.ID, lead.CallerNumber))
}

func (c *promptConfirmer) ConfirmClearAll(unresolved int64) bool {
	return c.ask(fmt.Sprintf("%d leads have no result yet. Delete everything anyway?", unresolved))
}

func (c *promptConfirmer) ask(question string) bool {
	if c.assumed {
		return true
	}
	fmt.Fprintf(c.out, "%s [y/N] ", question)
	answer, err := c.in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
