package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"surge/internal/buildpipeline"
	"surge/internal/di"
	"surge/internal/driver"
	"surge/internal/ui"
)

type buildOutcome struct {
	result buildpipeline.BuildResult
	err    error
}

type compileOutcome struct {
	result buildpipeline.CompileResult
	err    error
}

func runBuildWithUI(ctx context.Context, title string, files []string, req *buildpipeline.BuildRequest) (buildpipeline.BuildResult, error) {
	if req == nil {
		return buildpipeline.BuildResult{}, fmt.Errorf("missing build request")
	}
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan buildOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = buildpipeline.ChannelSink{Ch: events}
		res, err := buildpipeline.Build(ctx, &reqCopy)
		outcomeCh <- buildOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}

func runCompileWithUI(ctx context.Context, title string, files []string, req *buildpipeline.CompileRequest) (buildpipeline.CompileResult, error) {
	if req == nil {
		return buildpipeline.CompileResult{}, fmt.Errorf("missing compile request")
	}
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan compileOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = buildpipeline.ChannelSink{Ch: events}
		res, err := buildpipeline.Compile(ctx, &reqCopy)
		outcomeCh <- compileOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}

type diCheckOutcome struct {
	compile buildpipeline.CompileResult
	results []driver.DIFuncResult
	err     error
}

// runDICheckWithUI compiles targetPath and runs the definite-initialization
// checker over one shared event channel, so StageDI's working/done/error
// events land in the same progress model that already tracks StageParse
// through StageLower for the compile half.
func runDICheckWithUI(ctx context.Context, title string, files []string, compileReq *buildpipeline.CompileRequest, maxDiagnostics, jobs int, opts di.Options) (diCheckOutcome, error) {
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan diCheckOutcome, 1)

	go func() {
		reqCopy := *compileReq
		sink := buildpipeline.ChannelSink{Ch: events}
		reqCopy.Progress = sink
		compileRes, err := buildpipeline.Compile(ctx, &reqCopy)
		if err != nil {
			outcomeCh <- diCheckOutcome{compile: compileRes, err: err}
			close(events)
			return
		}

		start := time.Now()
		sink.OnEvent(buildpipeline.Event{Stage: buildpipeline.StageDI, Status: buildpipeline.StatusWorking})
		typeInterner := compileRes.Diagnose.Sema.TypeInterner
		results, runErr := driver.RunDI(ctx, compileRes.MIR, typeInterner, maxDiagnostics, jobs, opts)
		status := buildpipeline.StatusDone
		if runErr != nil {
			status = buildpipeline.StatusError
		}
		sink.OnEvent(buildpipeline.Event{Stage: buildpipeline.StageDI, Status: status, Err: runErr, Elapsed: time.Since(start)})

		outcomeCh <- diCheckOutcome{compile: compileRes, results: results, err: runErr}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome, uiErr
	}
	return outcome, outcome.err
}
