// Package cli wires Recap's cobra command surface onto the ingestion-and-
// compaction core, the way the pack's cobra-based CLIs assemble their own
// root commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wilbur182/recap/internal/features"
)

// Version is set at build time via ldflags.
var Version = ""

// featureOverrides collects --feature name=bool flags from the root command,
// applied to the global feature manager inside newApp after config loads.
var featureOverrides []string

// NewRootCmd builds the recap root command and its subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "recap",
		Short:         "Recap: AI coding session ingestion and work-summary compaction",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringArrayVar(&featureOverrides, "feature", nil,
		"override a feature flag for this run, e.g. --feature llm_batch_prompts=true (repeatable)")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newCompactCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func effectiveVersion() string {
	if Version != "" {
		return Version
	}
	return "dev"
}

// applyFeatureOverrides parses every --feature name=bool flag and applies it
// to the already-initialized global feature manager. Malformed entries are
// reported but don't abort the run.
func applyFeatureOverrides(log interface{ Warn(string, ...any) }) {
	for _, raw := range featureOverrides {
		name, value, ok := strings.Cut(raw, "=")
		if !ok {
			if log != nil {
				log.Warn("ignoring malformed --feature flag", "value", raw)
			}
			continue
		}
		enabled, err := parseBoolFlag(value)
		if err != nil {
			if log != nil {
				log.Warn("ignoring malformed --feature flag", "value", raw, "error", err)
			}
			continue
		}
		features.SetOverride(name, enabled)
	}
}

func parseBoolFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("not a bool: %q", s)
	}
}
