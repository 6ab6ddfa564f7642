package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tools.zach/dev/mediacord/internal/config"
)

var errNoServerSelected = errors.New("no server selected; pass --server or run 'mediacord server select'")

// resolveServer returns id, or the selected server's ID when id is empty.
func resolveServer(store *config.Store, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	cfg, err := store.Load()
	if err != nil {
		return "", err
	}
	sel, ok := cfg.SelectedServer()
	if !ok {
		return "", errNoServerSelected
	}
	return sel.ID, nil
}

func (c *cli) libraryCmd() *cobra.Command {
	var serverID string
	cmd := &cobra.Command{
		Use:   "library",
		Short: "List libraries and hide them from presence",
	}
	cmd.PersistentFlags().StringVar(&serverID, "server", "", "Server ID (default: the selected server)")
	cmd.AddCommand(c.libraryListCmd(&serverID), c.libraryToggleCmd(&serverID))
	return cmd
}

type libraryRow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Ignored bool   `json:"ignored"`
}

func (c *cli) libraryListCmd(serverID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the server's libraries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, store, err := c.agent()
			if err != nil {
				return err
			}
			id, err := resolveServer(store, *serverID)
			if err != nil {
				return err
			}
			views, err := a.UserViews(cmd.Context(), id)
			if err != nil {
				return err
			}
			cfg, err := store.Load()
			if err != nil {
				return err
			}
			srv, _ := cfg.Server(id)

			rows := make([]libraryRow, 0, len(views))
			for _, v := range views {
				rows = append(rows, libraryRow{ID: v.ID, Name: v.Name, Ignored: srv.IsViewIgnored(v.ID)})
			}
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			out := cmd.OutOrStdout()
			for _, r := range rows {
				state := "shown"
				if r.Ignored {
					state = "hidden"
				}
				fmt.Fprintf(out, "%-34s %-24s %s\n", r.ID, r.Name, state)
			}
			return nil
		},
	}
}

func (c *cli) libraryToggleCmd(serverID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <library-id>",
		Short: "Hide or show a library's items in presence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, store, err := c.agent()
			if err != nil {
				return err
			}
			id, err := resolveServer(store, *serverID)
			if err != nil {
				return err
			}
			ignored, err := a.ToggleIgnoredLibrary(id, args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), libraryRow{ID: args[0], Ignored: ignored})
			}
			if ignored {
				fmt.Fprintf(cmd.OutOrStdout(), "Library %s is now hidden\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Library %s is now shown\n", args[0])
			}
			return nil
		},
	}
}
