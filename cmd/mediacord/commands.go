package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tools.zach/dev/mediacord/internal/discovery"
	"tools.zach/dev/mediacord/internal/logger"
	"tools.zach/dev/mediacord/internal/remote"
	"tools.zach/dev/mediacord/internal/update"
)

// ///////////////////////////////////////////////
// display
// ///////////////////////////////////////////////

func (c *cli) displayCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "display on|off",
		Short:     "Turn presence display on or off",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := c.agent()
			if err != nil {
				return err
			}
			on := args[0] == "on"
			if err := a.SetDisplay(cmd.Context(), on); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Presence display %s\n", args[0])
			return nil
		},
	}
}

// ///////////////////////////////////////////////
// discover
// ///////////////////////////////////////////////

func (c *cli) discoverCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find Emby and Jellyfin servers on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			servers := discovery.Discover(cmd.Context(), timeout)
			if c.jsonOutput {
				if servers == nil {
					servers = []discovery.Server{}
				}
				return printJSON(cmd.OutOrStdout(), servers)
			}
			out := cmd.OutOrStdout()
			if len(servers) == 0 {
				fmt.Fprintln(out, "No servers found.")
				return nil
			}
			for _, s := range servers {
				fmt.Fprintf(out, "%-9s %-24s %s://%s:%d\n", s.Type, s.Name, s.Protocol, s.Address, s.Port)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", discovery.DefaultTimeout, "How long to wait for replies")
	return cmd
}

// ///////////////////////////////////////////////
// reset
// ///////////////////////////////////////////////

func (c *cli) resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every configured server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset removes all servers; pass --yes to confirm")
			}
			a, _, err := c.agent()
			if err != nil {
				return err
			}
			if err := a.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All servers removed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

// ///////////////////////////////////////////////
// logs
// ///////////////////////////////////////////////

func (c *cli) logsCmd() *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the end of the daemon log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tail, err := logger.ReadTail(c.paths().Log(), lines)
			if errors.Is(err, os.ErrNotExist) {
				return errors.New("no log file yet; has the daemon run?")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tail)
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines")
	return cmd
}

// ///////////////////////////////////////////////
// version
// ///////////////////////////////////////////////

func (c *cli) versionCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ver := resolveVersion()
			out := cmd.OutOrStdout()
			if !check {
				fmt.Fprintf(out, "mediacord %s\n", ver)
				return nil
			}
			res, err := update.Check(cmd.Context(), ver)
			if err != nil {
				return fmt.Errorf("update check: %w", err)
			}
			if c.jsonOutput {
				return printJSON(out, res)
			}
			fmt.Fprintf(out, "mediacord %s\n", ver)
			if res.Newer {
				link := res.Latest.URL
				if link == "" {
					link = remote.ReleasesPage()
				}
				fmt.Fprintf(out, "Update available: %s (%s)\n", res.Latest.Tag, link)
			} else {
				fmt.Fprintln(out, "Up to date")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}
