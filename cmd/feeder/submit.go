package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/submit"
)

var submitCmd = &cobra.Command{
	Use:     "submit <config>",
	Short:   "Create one incident on one server",
	GroupID: "submit",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		server, _ := cmd.Flags().GetString("server")
		raw, _ := cmd.Flags().GetBool("raw")

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		sub, err := a.submitter()
		if err != nil {
			return err
		}
		t, err := defaultTarget(server)
		if err != nil {
			return err
		}

		var res *model.PairResult
		if raw {
			jc, err := a.lib.LoadJSONConfig(ctx, args[0])
			if err != nil {
				return fmt.Errorf("json config %s: %w", args[0], err)
			}
			res = sub.SubmitRaw(ctx, t, jc.Name, jc.Document)
		} else {
			mc, err := a.lib.LoadMappingConfig(ctx, args[0])
			if err != nil {
				return fmt.Errorf("incident config %s: %w", args[0], err)
			}
			prepared, err := sub.Prepare(ctx, mc, t)
			if err != nil {
				return err
			}
			printDiagnostics(prepared.Payload.Diagnostics)
			res = sub.Submit(ctx, t, prepared)
		}

		if jsonOutput {
			if err := printJSON(res); err != nil {
				return err
			}
		} else {
			printResultTable([]model.PairResult{*res})
		}
		if !res.Success {
			return errors.New("submission failed")
		}
		return nil
	},
}

var bulkCmd = &cobra.Command{
	Use:     "bulk [<config>...]",
	Short:   "Submit configs to every active server (or --server ones) in parallel",
	GroupID: "submit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		serverNames, _ := cmd.Flags().GetStringSlice("server")
		all, _ := cmd.Flags().GetBool("all")
		group, _ := cmd.Flags().GetString("group")

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		sub, err := a.submitter()
		if err != nil {
			return err
		}
		ts, err := targets(serverNames)
		if err != nil {
			return err
		}

		var run *model.Run
		if group != "" {
			docs, err := groupDocuments(ctx, a, group)
			if err != nil {
				return err
			}
			run = sub.BulkRaw(ctx, docs, ts)
		} else {
			configs, err := bulkConfigs(ctx, a, args, all)
			if err != nil {
				return err
			}
			run = sub.Bulk(ctx, configs, ts)
		}

		if jsonOutput {
			if err := printJSON(run); err != nil {
				return err
			}
		} else {
			printRun(run)
		}
		if run.Failed() > 0 {
			return fmt.Errorf("%d of %d submissions failed", run.Failed(), len(run.Results))
		}
		return nil
	},
}

func bulkConfigs(ctx context.Context, a *app, names []string, all bool) ([]*model.MappingConfig, error) {
	if all {
		if len(names) > 0 {
			return nil, errors.New("--all takes no config names")
		}
		cfgs, err := a.lib.ListMappingConfigs(ctx)
		if err != nil {
			return nil, err
		}
		if len(cfgs) == 0 {
			return nil, errors.New("no incident configs saved")
		}
		return cfgs, nil
	}
	if len(names) == 0 {
		return nil, errors.New("name configs to submit, or pass --all or --group")
	}
	cfgs := make([]*model.MappingConfig, 0, len(names))
	for _, n := range names {
		mc, err := a.lib.LoadMappingConfig(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("incident config %s: %w", n, err)
		}
		cfgs = append(cfgs, mc)
	}
	return cfgs, nil
}

func groupDocuments(ctx context.Context, a *app, name string) ([]submit.RawDocument, error) {
	g, err := a.lib.LoadGroup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", name, err)
	}
	docs := make([]submit.RawDocument, 0, len(g.Members))
	for _, m := range g.Members {
		jc, err := a.lib.LoadJSONConfig(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("json config %s: %w", m, err)
		}
		docs = append(docs, submit.RawDocument{Name: jc.Name, Document: json.RawMessage(jc.Document)})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("group %s is empty", name)
	}
	return docs, nil
}

var runsCmd = &cobra.Command{
	Use:     "runs [<id>]",
	Short:   "List bulk runs, or show one",
	GroupID: "submit",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			run, err := a.lib.LoadRun(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(run)
			}
			printRun(run)
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := a.lib.ListRuns(ctx)
		if err != nil {
			return err
		}
		if limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}
		if jsonOutput {
			return printJSON(runs)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tPAIRS\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), len(r.Results), r.Failed())
		}
		return w.Flush()
	},
}

func init() {
	submitCmd.Flags().String("server", "", "server name (default server if empty)")
	submitCmd.Flags().Bool("raw", false, "treat <config> as a JSON config and send it through the server's own mapping")

	bulkCmd.Flags().StringSlice("server", nil, "servers to submit to (default: all active servers)")
	bulkCmd.Flags().Bool("all", false, "submit every saved incident config")
	bulkCmd.Flags().String("group", "", "send the JSON configs of a group raw instead of incident configs")

	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
}
