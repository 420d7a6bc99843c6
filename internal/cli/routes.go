package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dalemusser/lessonsync/internal/app/docstore/memstore"
	"github.com/dalemusser/lessonsync/internal/app/maintainers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RouteEntry lists the maintainers bound to one pattern, in run order.
type RouteEntry struct {
	Pattern     string   `json:"pattern"`
	Maintainers []string `json:"maintainers"`
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the document pattern to maintainer routing table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := RoutingTable()
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), "ok", entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATTERN\tMAINTAINERS")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\n", e.Pattern, strings.Join(e.Maintainers, ", "))
			}
			return tw.Flush()
		},
	}
}

// RoutingTable returns the production routing table grouped by pattern in
// registration order.
func RoutingTable() []RouteEntry {
	router, _ := maintainers.NewRouter(maintainers.Deps{DB: memstore.New(), Logger: zap.NewNop()})
	var out []RouteEntry
	index := map[string]int{}
	for _, rt := range router.Routes() {
		i, ok := index[rt.Pattern]
		if !ok {
			i = len(out)
			index[rt.Pattern] = i
			out = append(out, RouteEntry{Pattern: rt.Pattern})
		}
		out[i].Maintainers = append(out[i].Maintainers, rt.Maintainer.Name())
	}
	return out
}
