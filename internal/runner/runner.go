package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cowork-forge/forge/internal/forgeerr"
	"github.com/cowork-forge/forge/internal/interaction"
	"github.com/cowork-forge/forge/internal/safety"
)

// OutputSink receives every line a managed process writes, tagged by
// stream name ("stdout"/"stderr") and which half of a fullstack pair it
// came from ("frontend"/"backend").
type OutputSink func(line, stream, component string)

// Start launches command in workingDir under iterationID, streaming output
// through backend.SendStreaming (and sink, if non-nil, for callers that
// want raw lines instead). Starting over an iteration that already has a
// running process stops it first, matching the original project runner's
// "stop existing, then start" behavior.
func (m *Manager) Start(ctx context.Context, iterationID, command, workingDir, url string, port int, backend interaction.Backend, sink OutputSink) (Info, error) {
	_ = m.Stop(iterationID)

	cmd, cancel, done, err := m.spawn(ctx, command, workingDir, iterationID, "", backend, sink)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		IterationID: iterationID,
		Type:        ProjectFrontend,
		URL:         url,
		Port:        port,
		PID:         cmd.Process.Pid,
		StartedAt:   time.Now(),
	}
	if port == 0 {
		info.Type = ProjectBackend
	}

	m.mu.Lock()
	m.processes[iterationID] = &process{info: info, cancel: cancel, done: done}
	m.mu.Unlock()

	return info, nil
}

// StartFullstack launches a backend and frontend dev server together,
// grounded on ProjectRuntimeConfig.fullstack in the original implementation:
// both processes are tracked under one iteration ID and Stop tears down
// both.
func (m *Manager) StartFullstack(ctx context.Context, iterationID, backendCmd, frontendCmd, workingDir, frontendURL string, frontendPort, backendPort int, backend interaction.Backend, sink OutputSink) (Info, error) {
	_ = m.Stop(iterationID)

	_ = WaitForDependencyInstall(ctx, workingDir, filepath.Join(workingDir, "node_modules"), 20*time.Second)

	beCmd, beCancel, beDone, err := m.spawn(ctx, backendCmd, workingDir, iterationID, "backend", backend, sink)
	if err != nil {
		return Info{}, err
	}
	feCmd, feCancel, feDone, err := m.spawn(ctx, frontendCmd, workingDir, iterationID, "frontend", backend, sink)
	if err != nil {
		_ = killProcessGroup(beCmd)
		beCancel()
		return Info{}, err
	}

	info := Info{
		IterationID: iterationID,
		Type:        ProjectFullstack,
		URL:         frontendURL,
		Port:        frontendPort,
		PID:         feCmd.Process.Pid,
		BackendPort: backendPort,
		BackendPID:  beCmd.Process.Pid,
		StartedAt:   time.Now(),
	}

	m.mu.Lock()
	m.processes[iterationID] = &process{
		info:   info,
		cancel: feCancel,
		done:   feDone,
		backend: &process{
			info:   Info{IterationID: iterationID, PID: beCmd.Process.Pid},
			cancel: beCancel,
			done:   beDone,
		},
	}
	m.mu.Unlock()

	return info, nil
}

// spawn starts one shell command and wires its stdout/stderr to reader
// goroutines, grounded on project_runner.rs's "read_line loop, emit event,
// clear buffer" structure and the teacher's SafeExecutor output handling.
func (m *Manager) spawn(ctx context.Context, command, workingDir, iterationID, component string, backend interaction.Backend, sink OutputSink) (*exec.Cmd, func(), chan struct{}, error) {
	if verdict := safety.Check(command, workingDir); verdict.Kind == safety.ResultBlocked {
		return nil, nil, nil, forgeerr.New(forgeerr.SafetyBlocked,
			fmt.Sprintf("runner: command blocked by safety check: %s (%s)", command, verdict.Reason))
	}

	runCtx, cancel := context.WithCancel(ctx)

	shell, flag := "sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd", "/C"
	}

	cmd := exec.CommandContext(runCtx, shell, flag, command)
	cmd.Dir = workingDir
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	setupProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, nil, nil, forgeerr.Wrap(forgeerr.ProcessSpawn, "runner: stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, nil, nil, forgeerr.Wrap(forgeerr.ProcessSpawn, "runner: stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, nil, forgeerr.Wrap(forgeerr.ProcessSpawn, fmt.Sprintf("runner: start %q", command), err)
	}

	done := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error { readStream(stdout, "stdout", component, backend, sink); return nil })
	g.Go(func() error { readStream(stderr, "stderr", component, backend, sink); return nil })

	go func() {
		_ = g.Wait()
		_ = cmd.Wait()
		close(done)
	}()

	return cmd, cancel, done, nil
}

// readStream drains one pipe line by line, grounded on project_runner.rs's
// read_line loop: each complete line is forwarded to the backend and the
// caller's sink, then the buffer advances.
func readStream(r io.Reader, stream, component string, backend interaction.Backend, sink OutputSink) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if backend != nil {
				_ = backend.SendStreaming(context.Background(), line, component, false)
			}
			if sink != nil {
				sink(line, stream, component)
			}
		}
		if err != nil {
			return
		}
	}
}

// Stop kills the running process (and its backend half, for a fullstack
// pair) and waits for its stream readers to drain.
func (m *Manager) Stop(iterationID string) error {
	m.mu.Lock()
	p, ok := m.processes[iterationID]
	if ok {
		delete(m.processes, iterationID)
	}
	m.mu.Unlock()

	if !ok {
		return forgeerr.New(forgeerr.ProcessTerminated, fmt.Sprintf("runner: no running process for %s", iterationID))
	}

	p.cancel()
	<-p.done
	if p.backend != nil {
		p.backend.cancel()
		<-p.backend.done
	}
	return nil
}
