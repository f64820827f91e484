package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/mapping"
	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/submit"
	"github.com/alfredjeanlab/feeder/internal/ui"
)

// editor is a saved incident config opened in a mapping session against
// a server's current schema.
type editor struct {
	app    *app
	config *model.MappingConfig
	sess   *mapping.Session
	target submit.Target
}

// newSession starts a session against the target's schema with the
// attachment catalog loaded. defaults nil maps the default fields.
func newSession(ctx context.Context, a *app, t submit.Target, incidentType string, defaults []string) (*mapping.Session, error) {
	schema, err := t.Client.FetchFieldDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", t.Name, err)
	}
	policy, err := mapping.ParseLastFlagPolicy(cfg.LastFlag)
	if err != nil {
		return nil, err
	}
	sess := mapping.NewSession(schema, mapping.Options{
		IncidentType:  incidentType,
		DefaultFields: defaults,
		LastFlag:      policy,
	})
	atts, err := a.lib.ListAttachments(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make([]model.Attachment, len(atts))
	for i, at := range atts {
		catalog[i] = *at
	}
	sess.SetAttachmentCatalog(catalog)
	return sess, nil
}

// openEditor loads the named config, reconciles it with the server schema
// and resolves it against its default JSON document.
func openEditor(ctx context.Context, name, server string) (*editor, error) {
	a, err := openApp(ctx)
	if err != nil {
		return nil, err
	}
	mc, err := a.lib.LoadMappingConfig(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("incident config %s: %w", name, err)
	}
	t, err := defaultTarget(server)
	if err != nil {
		return nil, err
	}
	sess, err := newSession(ctx, a, t, mc.IncidentType, []string{})
	if err != nil {
		return nil, err
	}
	sess.LoadConfig(*mc)
	if mc.DefaultJSONConfig != "" {
		doc, err := a.lib.LoadDocument(ctx, mc.DefaultJSONConfig)
		if err != nil {
			return nil, fmt.Errorf("json config %s: %w", mc.DefaultJSONConfig, err)
		}
		sess.SetDocument(doc)
	}
	return &editor{app: a, config: mc, sess: sess, target: t}, nil
}

// save writes the session's fields back, keeping the config's options.
func (e *editor) save(ctx context.Context) error {
	snap := e.sess.Snapshot(e.config.Name)
	snap.DefaultJSONConfig = e.config.DefaultJSONConfig
	snap.CreateInvestigation = e.config.CreateInvestigation
	if err := e.app.lib.SaveMappingConfig(ctx, &snap); err != nil {
		return err
	}
	*e.config = snap
	return nil
}

var incidentCmd = &cobra.Command{
	Use:     "incident",
	Short:   "Manage saved incident mappings",
	GroupID: "mapping",
}

var incidentNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create an incident config with the default fields mapped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		server, _ := cmd.Flags().GetString("server")
		incidentType, _ := cmd.Flags().GetString("type")
		jsonName, _ := cmd.Flags().GetString("json")
		investigate, _ := cmd.Flags().GetBool("investigate")

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		t, err := defaultTarget(server)
		if err != nil {
			return err
		}
		sess, err := newSession(ctx, a, t, incidentType, nil)
		if err != nil {
			return err
		}
		if jsonName != "" {
			doc, err := a.lib.LoadDocument(ctx, jsonName)
			if err != nil {
				return fmt.Errorf("json config %s: %w", jsonName, err)
			}
			sess.SetDocument(doc)
		}
		e := &editor{
			app:    a,
			config: &model.MappingConfig{Name: args[0], DefaultJSONConfig: jsonName, CreateInvestigation: investigate},
			sess:   sess,
			target: t,
		}
		if err := e.save(ctx); err != nil {
			return err
		}
		fmt.Printf("incident config %q created with %d fields\n", args[0], len(sess.Fields()))
		return nil
	},
}

var incidentSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Change an incident config's options",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		mc, err := a.lib.LoadMappingConfig(ctx, args[0])
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("type") {
			mc.IncidentType, _ = cmd.Flags().GetString("type")
		}
		if cmd.Flags().Changed("json") {
			mc.DefaultJSONConfig, _ = cmd.Flags().GetString("json")
		}
		if cmd.Flags().Changed("investigate") {
			mc.CreateInvestigation, _ = cmd.Flags().GetBool("investigate")
		}
		return a.lib.SaveMappingConfig(ctx, mc)
	},
}

var incidentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List incident configs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		cfgs, err := a.lib.ListMappingConfigs(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cfgs)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tFIELDS\tJSON\tINVESTIGATE\tUPDATED")
		for _, c := range cfgs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%t\t%s\n",
				c.Name, c.IncidentType, len(c.Fields), c.DefaultJSONConfig, c.CreateInvestigation,
				c.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var incidentShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show an incident config's fields resolved against the server schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		e, err := openEditor(cmd.Context(), args[0], server)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(e.sess.Snapshot(e.config.Name))
		}
		fmt.Printf("%s %s (server %s)\n", ui.RenderAccent("incident"), e.config.Name, e.target.Name)
		if e.config.DefaultJSONConfig != "" {
			fmt.Printf("source: json:%s\n", e.config.DefaultJSONConfig)
		}
		fmt.Println()
		printFieldTable(e.sess.Fields())
		return nil
	},
}

var incidentPreviewCmd = &cobra.Command{
	Use:   "preview <name>",
	Short: "Print the payload that would be submitted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		e, err := openEditor(cmd.Context(), args[0], server)
		if err != nil {
			return err
		}
		p := e.sess.AssemblePayload()
		if jsonOutput {
			return printJSON(map[string]any{
				"payload":     p.Document,
				"diagnostics": p.Diagnostics,
				"uploads":     e.sess.AttachmentPlan(),
			})
		}
		if err := printJSON(p.Document); err != nil {
			return err
		}
		for _, u := range e.sess.AttachmentPlan() {
			fmt.Fprintf(os.Stderr, "upload %s -> %s (last=%t)\n", u.Ref.AttachmentID, u.Field, u.Last)
		}
		printDiagnostics(p.Diagnostics)
		return nil
	},
}

var incidentRefreshCmd = &cobra.Command{
	Use:   "refresh <name>",
	Short: "Reconcile an incident config with the server's current schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		e, err := openEditor(cmd.Context(), args[0], server)
		if err != nil {
			return err
		}
		if err := e.save(cmd.Context()); err != nil {
			return err
		}
		for _, f := range e.sess.Fields() {
			if f.Locked {
				fmt.Printf("%s %s: %s\n", ui.RenderFail("locked"), f.ShortName, f.LockedReason)
			}
		}
		return nil
	},
}

var incidentDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an incident config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		return a.lib.DeleteMappingConfig(cmd.Context(), args[0])
	},
}

// parseLiteral reads a JSON literal, falling back to a plain string.
func parseLiteral(s string) jsonval.Value {
	if v, err := jsonval.Decode([]byte(s)); err == nil {
		return v
	}
	return jsonval.StringValue(s)
}

func init() {
	for _, c := range []*cobra.Command{incidentNewCmd, incidentShowCmd, incidentPreviewCmd, incidentRefreshCmd} {
		c.Flags().String("server", "", "server whose schema to map against (default server if empty)")
	}
	for _, c := range []*cobra.Command{incidentNewCmd, incidentSetCmd} {
		c.Flags().String("type", "", "incident type")
		c.Flags().String("json", "", "default JSON config to resolve paths against")
		c.Flags().Bool("investigate", false, "open an investigation after creating the incident")
	}

	incidentCmd.AddCommand(incidentNewCmd, incidentSetCmd, incidentListCmd, incidentShowCmd,
		incidentPreviewCmd, incidentRefreshCmd, incidentDeleteCmd)
}
