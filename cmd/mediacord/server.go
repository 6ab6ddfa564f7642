package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tools.zach/dev/mediacord/internal/agent"
	"tools.zach/dev/mediacord/internal/config"
)

func (c *cli) serverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage media servers",
	}
	cmd.AddCommand(c.serverAddCmd(), c.serverListCmd(), c.serverSelectCmd(), c.serverRemoveCmd())
	return cmd
}

func (c *cli) serverAddCmd() *cobra.Command {
	var in config.ServerInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log in to a server and select it",
		Example: `  mediacord server add --type jellyfin --address 192.168.1.20 --username alice --password secret
  mediacord server add --type emby --address https://media.example.org --port 443 --username alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := c.agent()
			if err != nil {
				return err
			}
			id, err := a.AddServer(cmd.Context(), in)
			if err != nil {
				if agent.IsLoginError(err) {
					return fmt.Errorf("could not log in to %s: %w", in.Address, err)
				}
				return err
			}
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added server %s (selected)\n", id)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Type, "type", "", "Server type: emby or jellyfin")
	f.StringVar(&in.Address, "address", "", "Host name or IP, optionally with http:// or https://")
	f.IntVar(&in.Port, "port", 0, "Port (default 8096)")
	f.StringVar(&in.Protocol, "protocol", "", "http or https (default http)")
	f.StringVar(&in.Username, "username", "", "User name")
	f.StringVar(&in.Password, "password", "", "Password (may be empty)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// serverRow is the list output for one server. The password is never shown.
type serverRow struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	URL          string   `json:"url"`
	Username     string   `json:"username"`
	Selected     bool     `json:"selected"`
	IgnoredViews []string `json:"ignored_views"`
}

func (c *cli) serverListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			cfg, err := store.Load()
			if err != nil {
				return err
			}
			rows := make([]serverRow, 0, len(cfg.Servers))
			for _, s := range cfg.Servers {
				rows = append(rows, serverRow{
					ID:           s.ID,
					Type:         s.Type,
					URL:          s.BaseURL(),
					Username:     s.Username,
					Selected:     s.Selected,
					IgnoredViews: s.IgnoredViews,
				})
			}
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), rows)
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No servers configured. Add one with 'mediacord server add'.")
				return nil
			}
			for _, r := range rows {
				mark := " "
				if r.Selected {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-34s %-9s %-32s %s\n", mark, r.ID, r.Type, r.URL, r.Username)
			}
			return nil
		},
	}
}

func (c *cli) serverSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <server-id>",
		Short: "Select the server presence is shown for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := c.agent()
			if err != nil {
				return err
			}
			if err := a.SelectServer(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected server %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) serverRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <server-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a server",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := c.agent()
			if err != nil {
				return err
			}
			if err := a.RemoveServer(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed server %s\n", args[0])
			return nil
		},
	}
}
