package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/feeder/internal/client"
	"github.com/alfredjeanlab/feeder/internal/servers"
	"github.com/alfredjeanlab/feeder/internal/ui"
)

var serverCmd = &cobra.Command{
	Use:     "server",
	Short:   "Manage XSOAR servers and their API keys",
	GroupID: "system",
}

var serverAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a server and store its API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		url, _ := cmd.Flags().GetString("url")
		authID, _ := cmd.Flags().GetString("auth-id")
		insecure, _ := cmd.Flags().GetBool("insecure")
		active, _ := cmd.Flags().GetBool("active")
		keepKey, _ := cmd.Flags().GetBool("keep-key")

		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if err := reg.Add(name, servers.Server{URL: url, AuthID: authID, Insecure: insecure, Active: active}); err != nil {
			return err
		}

		creds, err := openCredentials()
		if err != nil {
			return err
		}
		if !keepKey {
			key, err := ui.PromptSecret("API key for "+name, os.Stdin)
			if err != nil {
				return err
			}
			if err := creds.SetAPIKey(name, key); err != nil {
				return err
			}
		}
		if err := servers.Save(cfg.ServersFile, reg); err != nil {
			return err
		}
		fmt.Printf("server %q added (%s)\n", name, reg.Servers[name].URL)
		return nil
	},
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a server and its API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if err := reg.Remove(name); err != nil {
			return err
		}
		if err := servers.Save(cfg.ServersFile, reg); err != nil {
			return err
		}
		creds, err := openCredentials()
		if err != nil {
			return err
		}
		if err := creds.Delete(name); err != nil {
			logger.Warn("could not delete API key", "server", name, "err", err)
		}
		fmt.Printf("server %q removed\n", name)
		return nil
	},
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List servers (* marks the default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(reg)
		}
		if len(reg.Servers) == 0 {
			fmt.Println("no servers configured")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tACTIVE\tINSECURE")
		for _, name := range reg.Names() {
			s := reg.Servers[name]
			marker := "  "
			if name == reg.Default {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%t\t%t\n", marker, name, s.URL, s.Active, s.Insecure)
		}
		return w.Flush()
	},
}

func setActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := reg.SetActive(name, active); err != nil {
					return err
				}
			}
			return servers.Save(cfg.ServersFile, reg)
		},
	}
}

var serverDefaultCmd = &cobra.Command{
	Use:   "default <name>",
	Short: "Set the server used when --server is omitted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if _, _, err := reg.Get(args[0]); err != nil {
			return err
		}
		reg.Default = args[0]
		if err := servers.Save(cfg.ServersFile, reg); err != nil {
			return err
		}
		fmt.Printf("default server set to %q\n", args[0])
		return nil
	},
}

var serverTestCmd = &cobra.Command{
	Use:   "test [<name>]",
	Short: "Check that a server is reachable and the API key is accepted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		t, err := defaultTarget(name)
		if err != nil {
			return err
		}
		about, err := t.Client.TestConnection(cmd.Context())
		if err != nil {
			if client.IsUnauthorized(err) {
				return fmt.Errorf("server %s rejected the API key: %w", t.Name, err)
			}
			return err
		}
		if jsonOutput {
			return printJSON(about)
		}
		fmt.Printf("%s %s: XSOAR %s (build %s)\n", ui.RenderOK("ok"), t.Name, about.Version, about.BuildNumber)
		return nil
	},
}

func init() {
	serverAddCmd.Flags().String("url", "", "server base URL (required)")
	serverAddCmd.Flags().String("auth-id", "", "API key ID (XSOAR 8)")
	serverAddCmd.Flags().Bool("insecure", false, "skip TLS certificate verification")
	serverAddCmd.Flags().Bool("active", true, "include the server in bulk runs")
	serverAddCmd.Flags().Bool("keep-key", false, "keep the stored API key instead of prompting")
	_ = serverAddCmd.MarkFlagRequired("url")

	serverCmd.AddCommand(serverAddCmd)
	serverCmd.AddCommand(serverRemoveCmd)
	serverCmd.AddCommand(serverListCmd)
	serverCmd.AddCommand(setActiveCmd("activate", "Include servers in bulk runs", true))
	serverCmd.AddCommand(setActiveCmd("deactivate", "Exclude servers from bulk runs", false))
	serverCmd.AddCommand(serverDefaultCmd)
	serverCmd.AddCommand(serverTestCmd)
}
