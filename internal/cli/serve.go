package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bhandras/delaydeck/internal/app"
	"github.com/bhandras/delaydeck/internal/panel"
	"github.com/bhandras/delaydeck/pkg/logger"
)

func NewServeCmd(deps *Dependencies) *cobra.Command {
	var (
		addr    string
		showQR  bool
		connect bool
		origins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control panel API",
		Long: "Serve the HTTP control API used by the panel. With --qr a QR code of the\n" +
			"panel URL is printed so it can be opened from a phone on the same network.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := deps.openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			if err := applyOverrides(ctx, a, deps.connectRequest()); err != nil {
				return err
			}

			if addr == "" {
				addr = deps.Config.PanelAddr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}

			url := panel.PublicURL(ln.Addr().String())
			srv := panel.New(a, panel.Options{
				AllowedOrigins: origins,
				PublicURL:      url,
				Debug:          logger.Enabled(logger.LevelDebug),
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Control panel: %s\n", url)
			if showQR {
				qr, err := panel.QRText(url)
				if err != nil {
					return fmt.Errorf("render QR code: %w", err)
				}
				fmt.Fprint(out, qr)
			}

			if connect {
				if _, err := a.Connect(ctx, app.ConnectRequest{}); err != nil {
					logger.Warnf("cli: connect: %v", err)
				}
			}

			return srv.Serve(ctx, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:4460)")
	cmd.Flags().BoolVar(&showQR, "qr", false, "Print a QR code of the panel URL")
	cmd.Flags().BoolVar(&connect, "connect", false, "Connect to the switcher on startup")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "Allowed CORS origins (default any)")

	return cmd
}

// applyOverrides stores the port and password given on the command line so
// the panel connects with them.
func applyOverrides(ctx context.Context, a *app.App, req app.ConnectRequest) error {
	if req.Port == nil && req.Password == nil {
		return nil
	}
	s := a.Settings()
	if req.Port != nil {
		s.Port = *req.Port
	}
	if req.Password != nil {
		s.Password = *req.Password
	}
	return a.UpdateSettings(ctx, s)
}
