package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joeycumines/go-fibersched/sched"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       `run SCENARIO`,
		Short:     `Run a workload and print the scheduler counters`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: scenarioNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args[0])
		},
	}
	flags := cmd.Flags()
	flags.Int(`jobs`, 1000, `number of jobs, or values for the coro scenario`)
	flags.Int(`yields`, 3, `yields per job in the yield scenario`)
	flags.Duration(`linger`, 0, `keep serving metrics this long after the workload`)
	_ = a.v.BindPFlags(flags)
	return cmd
}

func (a *app) run(ctx context.Context, name string) (err error) {
	sc, ok := lookupScenario(name)
	if !ok {
		return fmt.Errorf("unknown scenario %q", name)
	}
	p := params{
		jobs:   a.v.GetInt(`jobs`),
		yields: a.v.GetInt(`yields`),
	}
	if p.jobs < 0 || p.yields < 0 {
		return fmt.Errorf("invalid workload: jobs %d, yields %d", p.jobs, p.yields)
	}

	s, err := sched.New(a.schedulerOptions()...)
	if err != nil {
		return err
	}
	defer func() {
		if e := s.Close(); e != nil && !errors.Is(e, sched.ErrClosed) && err == nil {
			err = e
		}
	}()

	if addr := a.v.GetString(`metrics-addr`); addr != `` {
		srv, bound, err := a.startMetrics(addr, a.v.GetString(`metrics-namespace`), s)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		a.logger.Info().Str(`addr`, bound.String()).Log(`serving metrics`)
	}

	start := time.Now()
	observed, runErr := sc.run(ctx, s, p)
	elapsed := time.Since(start)

	a.logger.Info().
		Str(`scenario`, sc.name).
		Int64(`observed`, observed).
		Dur(`elapsed`, elapsed).
		Log(`workload finished`)

	if err := writeReport(a.stdout, sc.name, observed, elapsed, s.Stats()); err != nil {
		return err
	}

	if linger := a.v.GetDuration(`linger`); linger > 0 && a.v.GetString(`metrics-addr`) != `` {
		select {
		case <-ctx.Done():
		case <-time.After(linger):
		}
	}

	if runErr != nil {
		return fmt.Errorf("%s: %w", sc.name, runErr)
	}
	return nil
}

func writeReport(w io.Writer, name string, observed int64, elapsed time.Duration, st sched.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		key string
		val any
	}{
		{`scenario`, name},
		{`observed`, observed},
		{`elapsed`, elapsed},
		{`workers`, st.Workers},
		{`jobs_completed`, st.JobsCompleted},
		{`jobs_failed`, st.JobsFailed},
		{`claim_failures`, st.ClaimFailures},
		{`active_jobs`, st.ActiveJobs},
		{`stacks_high_water`, st.Stacks.HighWater},
		{`stack_bytes_committed`, st.Stacks.Committed},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%v\n", row.key, row.val); err != nil {
			return err
		}
	}
	return tw.Flush()
}
