package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bhandras/delaydeck/internal/app"
	"github.com/bhandras/delaydeck/internal/delay"
	"github.com/bhandras/delaydeck/internal/storage"
)

func NewSettingsCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored settings",
	}
	cmd.AddCommand(newSettingsShowCmd(deps))
	cmd.AddCommand(newSettingsSetCmd(deps))
	return cmd
}

type settingsOut struct {
	Port        int               `json:"port"`
	HasPassword bool              `json:"hasPassword"`
	Delay       delay.DelayConfig `json:"delay"`
}

func newSettingsShowCmd(deps *Dependencies) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := deps.openApp(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			return printSettings(cmd.OutOrStdout(), a.Settings(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newSettingsSetCmd(deps *Dependencies) *cobra.Command {
	var (
		port        int
		password    string
		recordScene string
		delayScene  string
		delayInput  string
		bridgeInput string
		seconds     int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change stored settings",
		Long: "Change stored settings. Only the flags given are changed; pass\n" +
			"--stored-password \"\" to clear the password.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := deps.openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			s := a.Settings()
			changed := cmd.Flags().Changed
			if changed("stored-port") {
				s.Port = port
			}
			if changed("stored-password") {
				s.Password = password
			}
			if changed("record-scene") {
				s.Delay.RecordScene = recordScene
			}
			if changed("delay-scene") {
				s.Delay.DelayScene = delayScene
			}
			if changed("delay-input") {
				s.Delay.DelayInput = delayInput
			}
			if changed("bridge-input") {
				s.Delay.BridgeInput = bridgeInput
			}
			if changed("delay") {
				s.Delay.DelaySeconds = seconds
			}

			if err := a.UpdateSettings(ctx, s); err != nil {
				return err
			}
			return printSettings(cmd.OutOrStdout(), a.Settings(), false)
		},
	}

	// The global --port and --password flags only apply to one connection;
	// these are stored.
	f := cmd.Flags()
	f.IntVar(&port, "stored-port", storage.DefaultPort, "Port to connect to")
	f.StringVar(&password, "stored-password", "", "Password to connect with")
	f.StringVar(&recordScene, "record-scene", "", "Live scene restored on deactivate")
	f.StringVar(&delayScene, "delay-scene", "", "Scene carrying the delayed feed")
	f.StringVar(&delayInput, "delay-input", "", "Input revealed once the delay elapses")
	f.StringVar(&bridgeInput, "bridge-input", "", "Input shown until the reveal")
	f.IntVar(&seconds, "delay", delay.DefaultDelaySeconds, "Delay in seconds (5 to 300, step 5)")

	return cmd
}

func printSettings(w io.Writer, s storage.Settings, asJSON bool) error {
	view := settingsOut{
		Port:        s.Port,
		HasPassword: s.Password != "",
		Delay:       s.Delay,
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	password := "not set"
	if view.HasPassword {
		password = "set"
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Port:\t%d\n", view.Port)
	fmt.Fprintf(tw, "Password:\t%s\n", password)
	fmt.Fprintf(tw, "Record scene:\t%s\n", orDash(view.Delay.RecordScene))
	fmt.Fprintf(tw, "Delay scene:\t%s\n", orDash(view.Delay.DelayScene))
	fmt.Fprintf(tw, "Delay input:\t%s\n", orDash(view.Delay.DelayInput))
	fmt.Fprintf(tw, "Bridge input:\t%s\n", orDash(view.Delay.BridgeInput))
	fmt.Fprintf(tw, "Delay:\t%s\n", delay.FormatLabel(view.Delay.DelaySeconds))
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
