package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bhandras/delaydeck/internal/app"
	"github.com/bhandras/delaydeck/internal/delay"
)

// ErrConnectionLost is returned by run when the switcher goes away while
// the delay is active.
var ErrConnectionLost = errors.New("connection to the switcher was lost")

func NewRunCmd(deps *Dependencies) *cobra.Command {
	var delaySeconds int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Activate the delay until interrupted",
		Long: "Connect, activate the delay and show the countdown to the reveal.\n" +
			"Ctrl+C deactivates the delay, restores the record scene and disconnects.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			var outMu sync.Mutex
			printf := func(format string, args ...any) {
				outMu.Lock()
				defer outMu.Unlock()
				fmt.Fprintf(out, format, args...)
			}

			a, cleanup, err := deps.openApp(ctx, app.Options{
				OnTick: func(remaining int) {
					if remaining > 0 {
						printf("\rLive in %s ", delay.FormatClock(remaining))
						return
					}
					printf("\rLive in %s\n", delay.FormatClock(0))
				},
			})
			if err != nil {
				return err
			}
			defer cleanup()

			lost := make(chan struct{})
			var lostOnce sync.Once
			a.OnDisconnect(func() { lostOnce.Do(func() { close(lost) }) })

			if _, err := a.Connect(ctx, deps.connectRequest()); err != nil {
				return err
			}

			s := a.Settings()
			if cmd.Flags().Changed("delay") {
				s.Delay.DelaySeconds = delaySeconds
				if err := a.UpdateSettings(ctx, s); err != nil {
					return err
				}
			}
			if s.Delay.DelayScene == "" {
				return errors.New("no delay scene selected; see 'delaydeck settings set --delay-scene'")
			}

			if err := a.Activate(ctx); err != nil {
				return err
			}
			printf("Delay active: %s on %q. Press Ctrl+C to return to %q.\n",
				delay.FormatLabel(s.Delay.DelaySeconds), s.Delay.DelayScene, s.Delay.RecordScene)
			printf("\rLive in %s ", delay.FormatClock(s.Delay.DelaySeconds))

			select {
			case <-ctx.Done():
			case <-lost:
				printf("\n")
				return ErrConnectionLost
			}
			printf("\n")

			// ctx is already cancelled here.
			dctx, cancel := context.WithTimeout(context.Background(), deactivateTimeout(deps))
			defer cancel()
			if err := a.Deactivate(dctx); err != nil {
				return fmt.Errorf("deactivate: %w", err)
			}
			printf("Back to %q.\n", s.Delay.RecordScene)
			return nil
		},
	}

	cmd.Flags().IntVar(&delaySeconds, "delay", 0, "Delay in seconds for this and later runs (5 to 300, step 5)")
	return cmd
}

func deactivateTimeout(deps *Dependencies) time.Duration {
	// Deactivate makes up to a handful of calls.
	return 4 * deps.Config.CallTimeout
}
