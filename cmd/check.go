package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stackctl/internal/config"
	"stackctl/internal/supervisor"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the manifest and print the resolved start order",
		Long: `Loads the manifest, validates every service declaration, resolves the
dependency graph, and prints the order services would start in. Nothing
is started. The exit code is 2 for manifest errors and 3 for dependency
cycles, same as up.`,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	reg, err := config.Load(manifestPath)
	if err != nil {
		return err
	}

	order, err := supervisor.ResolveOrder(reg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Stack %q: %d services, manifest OK\n", reg.StackName(), reg.Len())
	fmt.Fprintf(out, "Start order: %s\n", strings.Join(order, " -> "))
	for _, name := range order {
		spec, _ := reg.Get(name)
		line := fmt.Sprintf("  %-20s %s", name, spec.Type)
		if len(spec.DependsOn) > 0 {
			line += "  (after " + strings.Join(spec.DependsOn, ", ") + ")"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
