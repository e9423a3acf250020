package cmd

import (
	"sort"

	"steward/internal/api"
	"steward/internal/cli"
	"steward/internal/state"

	"github.com/spf13/cobra"
)

var resourcesKind string

func newResourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resources",
		Aliases: []string{"resource", "res"},
		Short:   "Inspect the managed JVMs and web servers",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List resources with their last known state",
		Args:    cobra.NoArgs,
		RunE:    runResourcesList,
	}
	list.Flags().StringVar(&resourcesKind, "kind", "", "Only list resources of this kind (jvm, webserver)")

	cmd.AddCommand(list)
	return cmd
}

func runResourcesList(cmd *cobra.Command, _ []string) error {
	var kind api.ResourceKind
	if resourcesKind != "" {
		k, err := api.ParseResourceKind(resourcesKind)
		if err != nil {
			return err
		}
		kind = k
	}
	printer, err := newPrinter(cmd, rootFlags)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	application, err := startApplication(ctx, rootFlags)
	if err != nil {
		return err
	}
	defer application.Close()
	services := application.Services()

	resources, err := services.Resources.List(ctx)
	if err != nil {
		return err
	}
	return printer.PrintResources(resourceRows(resources, services.Store, kind))
}

// resourceRows joins resources with their stored state, sorted by kind and
// id. An empty kind keeps every resource.
func resourceRows(resources []api.Resource, store *state.Store, kind api.ResourceKind) []cli.ResourceRow {
	rows := make([]cli.ResourceRow, 0, len(resources))
	for _, res := range resources {
		if kind != "" && res.Ref.Kind != kind {
			continue
		}
		row := cli.ResourceRow{
			Kind:     res.Ref.Kind,
			ID:       res.Ref.ID,
			Name:     res.Name,
			Host:     res.Host,
			Platform: res.PlatformOrDefault(),
			State:    api.StateNew,
		}
		if cs, ok := store.Get(res.Ref); ok {
			row.State = cs.State
			if !cs.ObservedAt.IsZero() {
				observed := cs.ObservedAt
				row.Since = &observed
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Kind != rows[j].Kind {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}
