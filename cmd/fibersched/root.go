package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/joeycumines/go-fibersched/sched"
)

const envPrefix = `FIBERSCHED`

// app is the state shared by every command.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
	logger *logiface.Logger[logiface.Event]
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "fibersched: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		v:      viper.New(),
		stdout: stdout,
		stderr: stderr,
	}

	cmd := &cobra.Command{
		Use:           "fibersched",
		Short:         "Run workloads on the cooperative fiber scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.String(`config`, ``, `config file, any format viper reads`)
	flags.String(`log-level`, `info`, `log level: disabled, emerg, alert, crit, err, warning, notice, info, debug or trace`)
	flags.Bool(`tune`, true, `align GOMAXPROCS and GOMEMLIMIT with container limits`)
	flags.String(`name`, `fibersched`, `worker thread name prefix`)
	flags.Int(`workers`, 0, `worker threads, 0 for one per available CPU`)
	flags.Int(`queue-capacity`, sched.DefaultQueueCapacity, `capacity of each priority queue`)
	flags.Int(`stack-size`, 0, `stack block size in bytes, 0 for the default`)
	flags.Int(`arena-max-size`, 0, `stack arena reservation in bytes, 0 for the default`)
	flags.Bool(`guard-pages`, false, `place a guard page below every stack block`)
	flags.Bool(`affinity`, true, `pin each worker thread to one CPU`)
	flags.Bool(`idle-parking`, false, `park idle workers instead of spinning`)
	flags.String(`metrics-addr`, ``, `serve Prometheus metrics on this address`)
	_ = a.v.BindPFlags(flags)

	a.v.SetDefault(`metrics-namespace`, `fibersched`)
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(`-`, `_`))
	a.v.AutomaticEnv()

	cmd.AddCommand(
		newRunCommand(a),
		newScenariosCommand(a),
	)

	return cmd
}

func (a *app) init() error {
	if path := a.v.GetString(`config`); path != `` {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	level, err := parseLevel(a.v.GetString(`log-level`))
	if err != nil {
		return err
	}
	a.logger = stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(a.stderr)),
		stumpy.L.WithLevel(level),
	).Logger()

	if a.v.GetBool(`tune`) {
		a.tune()
	}

	return nil
}

// tune applies container CPU and memory limits to the runtime.
func (a *app) tune() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		a.logger.Debug().Logf(format, args...)
	})); err != nil {
		a.logger.Warning().Err(err).Log(`failed to set GOMAXPROCS`)
	}
	if limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.FromCgroup),
	); err != nil {
		a.logger.Debug().Err(err).Log(`GOMEMLIMIT unchanged`)
	} else {
		a.logger.Debug().Int64(`limit`, limit).Log(`set GOMEMLIMIT`)
	}
}

func (a *app) schedulerOptions() []sched.Option {
	opts := []sched.Option{
		sched.WithLogger(a.logger),
		sched.WithName(a.v.GetString(`name`)),
		sched.WithWorkers(a.v.GetInt(`workers`)),
		sched.WithQueueCapacity(a.v.GetInt(`queue-capacity`)),
		sched.WithGuardPages(a.v.GetBool(`guard-pages`)),
		sched.WithAffinity(a.v.GetBool(`affinity`)),
		sched.WithIdleParking(a.v.GetBool(`idle-parking`)),
	}
	if n := a.v.GetInt(`stack-size`); n != 0 {
		opts = append(opts, sched.WithStackSize(n))
	}
	if n := a.v.GetInt(`arena-max-size`); n != 0 {
		opts = append(opts, sched.WithArenaMaxSize(n))
	}
	return opts
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
}
