package main

import (
	"context"
	"fmt"

	gameDI "github.com/fd1az/flashblocks-catcher/business/game/di"
	"github.com/fd1az/flashblocks-catcher/pkg/ui"
)

func play(ctx context.Context, tuiMode bool) error {
	app, err := setup(ctx, tuiMode)
	if err != nil {
		return err
	}
	defer app.stop()

	if tuiMode {
		return runTUI(ctx, app)
	}
	return runCLI(ctx, app)
}

func runCLI(ctx context.Context, app *application) error {
	// CLI mode: Start modules synchronously
	if err := app.start(ctx); err != nil {
		return err
	}
	app.log.Info(ctx, "all modules started, watching both cadences")

	// Wait for shutdown
	<-ctx.Done()

	app.log.Info(ctx, "shutting down")
	return nil
}

func runTUI(ctx context.Context, app *application) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Create the TUI program before anything can Send to it
	p := ui.NewProgram()

	// Run game logic in background (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		// Wait for welcome screen to complete (StartModulesMsg signal)
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		ui.Send(ui.StartupMsg{Step: "config", Status: "connected"})
		ui.Send(ui.StartupMsg{Step: "rpc", Status: "connecting"})

		// Connections happen here, the TUI shows progress
		if err := app.start(ctx); err != nil {
			ui.Send(ui.StartupMsg{Step: "rpc", Status: "failed", Message: err.Error()})
			errCh <- err
			return
		}
		ui.Send(ui.StartupMsg{Step: "rpc", Status: "connected"})
		ui.SetController(gameDI.GetSession(app.mono.Services()))

		<-ctx.Done()
		// Quit the TUI if the signal came from outside it.
		p.Quit()
		errCh <- nil
	}()

	// Run TUI (blocking) - shows immediately with welcome screen
	_, runErr := p.Run()
	cancel()
	if err := <-errCh; err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
