package launch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"playwarden/limits"
	"playwarden/query"
	"playwarden/tracker"
	"playwarden/web"
)

// App bundles the wired components so the tray lifecycle can start and stop
// them as one unit.
type App struct {
	DB       *query.Database
	Focus    *tracker.FocusMonitor
	Sessions *tracker.SessionManager
	Timer    *limits.Timer
	Server   *web.Server
	Bus      *tracker.Bus
	Logger   zerolog.Logger
	WebAddr  string
	IconPath string
}

// Run blocks until the tray app quits. systray owns the main goroutine.
func Run(app *App) {
	systray.Run(app.onReady, app.onExit)
}

func (app *App) onReady() {
	if icon, err := os.ReadFile(app.IconPath); err == nil {
		systray.SetIcon(icon)
	}
	systray.SetTitle("Playwarden")
	systray.SetTooltip("Watching your playtime")

	mOpen := systray.AddMenuItem("Open dashboard", "Open the web dashboard in the browser")
	mPause := systray.AddMenuItem("Pause tracking", "Suspend game detection")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Stop tracking and exit")

	app.Focus.Start()
	app.Sessions.StartTracking()
	app.Timer.Start()
	app.Server.Start()

	go app.eventLoop()

	go func() {
		for {
			select {
			case <-mOpen.ClickedCh:
				app.openDashboard()
			case <-mPause.ClickedCh:
				if app.Sessions.Running() {
					app.Sessions.StopTracking()
					mPause.SetTitle("Resume tracking")
					systray.SetTooltip("Tracking paused")
				} else {
					app.Sessions.StartTracking()
					mPause.SetTitle("Pause tracking")
					systray.SetTooltip("Watching your playtime")
				}
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

// eventLoop reacts to engine events: it feeds the gaming state into the
// limit timer and keeps the tray text current.
func (app *App) eventLoop() {
	for ev := range app.Bus.Subscribe() {
		switch e := ev.(type) {
		case tracker.GamingStateChanged:
			app.Timer.SetGamingState(e.IsGaming)
		case tracker.GameStarted:
			systray.SetTooltip("Playing: " + e.GameName)
		case tracker.GameStopped:
			// Finished sessions change played-today immediately.
			app.Timer.ForceUpdate()
		case tracker.CurrentlyPlayingChanged:
			if e.GameName != nil {
				systray.SetTooltip("Playing: " + *e.GameName)
			} else {
				systray.SetTooltip("Watching your playtime")
			}
		case tracker.NewGameDetected:
			app.Logger.Info().Str("game", e.GameName).Str("platform", e.Platform).Msg("new game registered")
		case limits.TimerUpdated:
			if e.State.HasLimit && e.State.IsGaming {
				systray.SetTitle("Playwarden " + formatCountdown(e.State.RemainingSeconds))
			} else {
				systray.SetTitle("Playwarden")
			}
		case limits.OverLimitChanged:
			if e.IsOverLimit {
				systray.SetTooltip("Daily limit reached")
			}
		}
	}
}

func (app *App) openDashboard() {
	url := "http://" + app.WebAddr
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		app.Logger.Warn().Err(err).Str("url", url).Msg("failed to open dashboard")
	}
}

// onExit finalizes every open session before the process dies; losing the
// tail of a session here would undercount the daily total.
func (app *App) onExit() {
	app.Sessions.StopTracking()
	app.Timer.Stop()
	app.Focus.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := app.Server.Stop(ctx); err != nil {
		app.Logger.Warn().Err(err).Msg("api shutdown incomplete")
	}
	app.Bus.Close()
	if err := app.DB.Close(); err != nil {
		app.Logger.Warn().Err(err).Msg("database close failed")
	}
	app.Logger.Info().Msg("shutdown complete")
}

// formatCountdown renders remaining seconds; past the limit the remainder is
// negative and shown with a leading minus.
func formatCountdown(seconds int64) string {
	if seconds < 0 {
		return "-" + formatDuration(time.Duration(-seconds)*time.Second)
	}
	return formatDuration(time.Duration(seconds)*time.Second)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}
