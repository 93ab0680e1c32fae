package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-fibersched/sched"
)

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	base := []string{`--tune=false`, `--affinity=false`, `--workers=2`}
	if len(args) > 0 {
		args = append(append([]string{args[0]}, base...), args[1:]...)
	}
	code := execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func reportValue(t *testing.T, out, key string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == key {
			return fields[1]
		}
	}
	t.Fatalf("no %q in report:\n%s", key, out)
	return ``
}

func TestRun_Scenarios(t *testing.T) {
	for _, tc := range []struct {
		name     string
		args     []string
		observed string
	}{
		{`roundtrip`, []string{`--jobs=1000`}, `1000`},
		{`yield`, []string{`--jobs=10`, `--yields=3`}, `40`},
		{`priority`, []string{`--jobs=100`}, `100`},
		{`event`, []string{`--jobs=20`}, `20`},
		{`await`, []string{`--jobs=20`}, `40`},
		{`promise`, []string{`--jobs=10`}, `285`},
		{`coro`, []string{`--jobs=5`}, `15`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{`run`, tc.name, `--log-level=disabled`}, tc.args...)
			stdout, stderr, code := runCLI(t, args...)
			require.Equal(t, 0, code, stderr)
			assert.Equal(t, tc.name, reportValue(t, stdout, `scenario`))
			assert.Equal(t, tc.observed, reportValue(t, stdout, `observed`))
			assert.Equal(t, `2`, reportValue(t, stdout, `workers`))
			assert.Equal(t, `0`, reportValue(t, stdout, `jobs_failed`))
			assert.Equal(t, `0`, reportValue(t, stdout, `active_jobs`))
		})
	}
}

func TestRun_QueueSmallerThanWorkload(t *testing.T) {
	stdout, stderr, code := runCLI(t, `run`, `roundtrip`, `--log-level=disabled`, `--queue-capacity=4`, `--jobs=500`)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, `500`, reportValue(t, stdout, `jobs_completed`))
}

func TestRun_UnknownScenario(t *testing.T) {
	_, stderr, code := runCLI(t, `run`, `nope`, `--log-level=disabled`)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown scenario "nope"`)
}

func TestRun_InvalidOptions(t *testing.T) {
	_, stderr, code := runCLI(t, `run`, `roundtrip`, `--log-level=disabled`, `--queue-capacity=0`)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, sched.ErrInvalidOption.Error())

	_, stderr, code = runCLI(t, `run`, `roundtrip`, `--log-level=loud`)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown log level "loud"`)

	_, _, code = runCLI(t, `run`)
	assert.Equal(t, 1, code)
}

func TestRun_Environment(t *testing.T) {
	t.Setenv(`FIBERSCHED_JOBS`, `42`)
	t.Setenv(`FIBERSCHED_LOG_LEVEL`, `disabled`)
	stdout, stderr, code := runCLI(t, `run`, `roundtrip`)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, `42`, reportValue(t, stdout, `observed`))
	assert.Empty(t, stderr)
}

func TestRun_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), `fibersched.yaml`)
	require.NoError(t, os.WriteFile(path, []byte("jobs: 7\nyields: 1\nlog-level: disabled\n"), 0o600))
	stdout, stderr, code := runCLI(t, `run`, `yield`, `--config`, path)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, `14`, reportValue(t, stdout, `observed`))
}

func TestRun_FlagOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), `fibersched.yaml`)
	require.NoError(t, os.WriteFile(path, []byte("jobs: 7\n"), 0o600))
	stdout, stderr, code := runCLI(t, `run`, `roundtrip`, `--log-level=disabled`, `--config`, path, `--jobs=9`)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, `9`, reportValue(t, stdout, `observed`))
}

func TestRun_Logs(t *testing.T) {
	_, stderr, code := runCLI(t, `run`, `roundtrip`, `--jobs=3`, `--log-level=info`)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, `"msg":"workload finished"`)
	assert.Contains(t, stderr, `"scenario":"roundtrip"`)
}

func TestScenariosCommand(t *testing.T) {
	stdout, stderr, code := runCLI(t, `scenarios`)
	require.Equal(t, 0, code, stderr)
	for _, name := range scenarioNames() {
		assert.Contains(t, stdout, name)
	}
}

func TestParseLevel(t *testing.T) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		got, err := parseLevel(level.String())
		require.NoError(t, err)
		assert.Equal(t, level, got)
	}
	_, err := parseLevel(`verbose`)
	assert.Error(t, err)
}

func TestStartMetrics(t *testing.T) {
	s, err := sched.New(sched.WithWorkers(1), sched.WithAffinity(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	a := &app{}
	srv, addr, err := a.startMetrics(`127.0.0.1:0`, `test`, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	resp, err := http.Get(`http://` + addr.String() + `/metrics`)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_scheduler_workers{scheduler="`+s.ID()+`"} 1`)
	assert.Contains(t, string(body), `test_scheduler_jobs_completed_total`)
}

func TestBackoff_YieldsInsideJob(t *testing.T) {
	s, err := sched.New(sched.WithWorkers(1), sched.WithAffinity(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var otherRan, seen atomic.Bool
	require.NoError(t, s.Schedule(func(any) {
		if err := sched.CurrentScheduler().Schedule(func(any) { otherRan.Store(true) }, nil, sched.PriorityHigh); err != nil {
			t.Error(err)
			return
		}
		backoff()
		seen.Store(otherRan.Load())
	}, nil, sched.PriorityLow))
	require.NoError(t, s.Run(context.Background()))
	assert.True(t, seen.Load(), "the single worker must run other jobs during a retry")

	backoff()
}
