package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bhandras/delaydeck/internal/app"
	"github.com/bhandras/delaydeck/internal/delay"
)

type inventoryView struct {
	ProgramScene string   `json:"programScene"`
	Scenes       []string `json:"scenes"`
	Inputs       []string `json:"inputs"`
}

func NewInventoryCmd(deps *Dependencies) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List the switcher's scenes and inputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := deps.openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			inv, err := a.Connect(ctx, deps.connectRequest())
			if err != nil {
				return err
			}
			view := inventoryView{
				ProgramScene: a.Status().ProgramScene,
				Scenes:       nonNil(inv.Scenes),
				Inputs:       nonNil(inv.Inputs),
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printInventory(out, view, a.Settings().Delay)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func printInventory(w io.Writer, v inventoryView, cfg delay.DelayConfig) {
	fmt.Fprintf(w, "Program scene: %s\n", v.ProgramScene)

	fmt.Fprintln(w, "\nScenes:")
	for _, name := range v.Scenes {
		fmt.Fprintf(w, "  %s%s\n", name, role(name, map[string]string{
			cfg.RecordScene: "record",
			cfg.DelayScene:  "delay",
		}))
	}

	fmt.Fprintln(w, "\nInputs:")
	for _, name := range v.Inputs {
		fmt.Fprintf(w, "  %s%s\n", name, role(name, map[string]string{
			cfg.DelayInput:  "delayed",
			cfg.BridgeInput: "bridge",
		}))
	}
}

// role returns a " (role)" suffix when name is one of the selected names.
func role(name string, roles map[string]string) string {
	if r, ok := roles[name]; ok && name != "" {
		return " (" + r + ")"
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
