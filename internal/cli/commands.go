package cli

import (
	"fmt"
	"text/tabwriter"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/service"
)

type SweepCmd struct {
	AsOf string `help:"Calendar date to sweep as (YYYY-MM-DD, or 'today' for the date every client has reached)." default:"today"`
}

// Run expires overdue plans, flags overdue invoices and skips stale sessions once.
func (c *SweepCmd) Run(ctx *Context) error {
	asOf := ctx.App.Sweeper.AsOf()
	if c.AsOf != "" && c.AsOf != "today" {
		d, err := ctx.asOf(c.AsOf)
		if err != nil {
			return err
		}
		asOf = d
	}
	res, err := ctx.App.Sweeper.SweepOnce(ctx.Ctx, asOf)
	fmt.Fprintf(ctx.Out, "sweep as of %s: %d plans expired, %d invoices overdue, %d sessions skipped\n",
		asOf.Format(domain.DateLayout), res.PlansExpired, res.InvoicesOverdue, res.SessionsSkipped)
	return err
}

type PlansCmd struct {
	Client string `arg:"" help:"Client ID."`
	AsOf   string `help:"Calendar date (YYYY-MM-DD, or 'today' in the client's timezone)." default:"today"`
}

// Run lists the plans the client sees on the date, current plan first marked with '*'.
func (c *PlansCmd) Run(ctx *Context) error {
	clientID, err := parseID("client", c.Client)
	if err != nil {
		return err
	}
	asOf, err := ctx.clientAsOf(c.AsOf, clientID)
	if err != nil {
		return err
	}
	plans, err := ctx.App.Services.Plans.VisiblePlans(ctx.Ctx, clientID, asOf)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		fmt.Fprintln(ctx.Out, "no visible plans")
		return nil
	}
	current, err := ctx.App.Services.Plans.CurrentPlan(ctx.Ctx, clientID, asOf)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(ctx.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tSTATUS\tSTART\tEND")
	for i := range plans {
		p := &plans[i]
		mark := ""
		if current != nil && current.ID == p.ID {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, p.ID.Hex(), p.Name, p.Status, formatDate(p.StartDate), formatDate(p.EndDate))
	}
	return w.Flush()
}

type ProgressCmd struct {
	Plan  string `arg:"" help:"Plan ID."`
	Coach string `required:"" help:"ID of the coach owning the plan."`
	AsOf  string `help:"Calendar date (YYYY-MM-DD or 'today')." default:"today"`
}

func (c *ProgressCmd) Run(ctx *Context) error {
	planID, err := parseID("plan", c.Plan)
	if err != nil {
		return err
	}
	coachID, err := parseID("coach", c.Coach)
	if err != nil {
		return err
	}
	asOf, err := ctx.asOf(c.AsOf)
	if err != nil {
		return err
	}
	report, err := ctx.App.Services.Plans.PlanProgress(ctx.Ctx, service.CoachActor(coachID), planID, asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%s: %d%% (%d of %d sessions)\n",
		report.Plan.Name, report.Percent, report.CompletedSessions, report.EstimatedSessions)
	if tr := report.TimeRemaining; tr != nil {
		fmt.Fprintf(ctx.Out, "time remaining: %s (%s)\n", tr.Text, tr.Status)
	}
	return nil
}

type TodayCmd struct {
	Client string `arg:"" help:"Client ID."`
	AsOf   string `help:"Calendar date (YYYY-MM-DD, or 'today' in the client's timezone)." default:"today"`
}

// Run opens the client's session for the date the same way the client app does.
func (c *TodayCmd) Run(ctx *Context) error {
	clientID, err := parseID("client", c.Client)
	if err != nil {
		return err
	}
	asOf, err := ctx.clientAsOf(c.AsOf, clientID)
	if err != nil {
		return err
	}
	ws, err := ctx.App.Services.Sessions.EnsureTodaysSession(ctx.Ctx, clientID, asOf)
	if err != nil {
		return err
	}
	if ws == nil {
		fmt.Fprintln(ctx.Out, "no active plan applies")
		return nil
	}
	fmt.Fprintf(ctx.Out, "session %s for plan %s on %s: %s\n",
		ws.ID.Hex(), ws.PlanID.Hex(), ws.ScheduledDate.Format(domain.DateLayout), ws.Status)
	return nil
}
