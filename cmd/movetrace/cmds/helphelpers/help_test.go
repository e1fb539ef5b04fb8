package helphelpers

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestPrepare(t *testing.T) {
	root := &cobra.Command{Use: "movetrace"}
	root.PersistentFlags().StringSlice("debug-info", nil, "")
	root.PersistentFlags().Bool("log", false, "")
	config := &cobra.Command{Use: "config", Run: func(*cobra.Command, []string) {}}
	events := &cobra.Command{Use: "events", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(config, events)

	Prepare(events)
	if root.PersistentFlags().Lookup("debug-info").Hidden {
		t.Fatal("debug-info hidden for events")
	}
	Prepare(config)
	if !root.PersistentFlags().Lookup("debug-info").Hidden {
		t.Error("debug-info shown for config")
	}
	if root.PersistentFlags().Lookup("log").Hidden {
		t.Error("log hidden for config")
	}
}
