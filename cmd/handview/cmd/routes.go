package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/0xReLogic/handview/internal/frontcontroller"
	"github.com/0xReLogic/handview/internal/metrics"
	"github.com/0xReLogic/handview/internal/plugins"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the route table and available plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		router, err := frontcontroller.New(cfg, metrics.NewMetricsCollector())
		if err != nil {
			return err
		}
		printRoutes(cmd.OutOrStdout(), router.Routes())
		fmt.Fprintf(cmd.OutOrStdout(), "plugins: %v\n", plugins.List())
		return nil
	},
}

func printRoutes(w io.Writer, routes []frontcontroller.Route) {
	lines := make([]string, 0, len(routes))
	for _, r := range routes {
		lines = append(lines, r.String())
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
