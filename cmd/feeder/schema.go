package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:     "schema",
	Short:   "Inspect a server's incident fields and types",
	GroupID: "system",
}

var schemaFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the incident fields a server defines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		incidentType, _ := cmd.Flags().GetString("type")
		customOnly, _ := cmd.Flags().GetBool("custom")

		t, err := defaultTarget(server)
		if err != nil {
			return err
		}
		schema, err := t.Client.FetchFieldDefinitions(cmd.Context())
		if err != nil {
			return err
		}
		out := schema[:0]
		for _, f := range schema {
			if customOnly && !f.Custom {
				continue
			}
			if !f.AppliesTo(incidentType) {
				continue
			}
			out = append(out, f)
		}
		if jsonOutput {
			return printJSON(out)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SHORT NAME\tNAME\tTYPE\tCUSTOM\tREQUIRED\tOPTIONS")
		for _, f := range out {
			supported := string(f.Type)
			if !f.Type.IsSupported() {
				supported += " (unsupported)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n",
				f.ShortName, truncate(f.LongName, 30), supported, f.Custom, f.Required,
				truncate(strings.Join(f.SelectOptions, ","), 40))
		}
		w.Flush()
		fmt.Printf("\n%d fields\n", len(out))
		return nil
	},
}

var schemaTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the incident types a server defines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		t, err := defaultTarget(server)
		if err != nil {
			return err
		}
		types, err := t.Client.FetchIncidentTypes(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(types)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPLAYBOOK\tDISABLED")
		for _, it := range types {
			fmt.Fprintf(w, "%s\t%s\t%t\n", it.Name, it.PlaybookID, it.Disabled)
		}
		return w.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{schemaFieldsCmd, schemaTypesCmd} {
		c.Flags().String("server", "", "server name (default server if empty)")
	}
	schemaFieldsCmd.Flags().String("type", "", "only fields associated with this incident type")
	schemaFieldsCmd.Flags().Bool("custom", false, "only custom fields")

	schemaCmd.AddCommand(schemaFieldsCmd)
	schemaCmd.AddCommand(schemaTypesCmd)
}
