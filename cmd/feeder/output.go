package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/feeder/internal/mapping"
	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printFieldTable(fields []model.MappedField) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tTYPE\tMETHOD\tENABLED\tVALUE\tSTATE")
	for _, f := range fields {
		value := f.Value.Text()
		if f.FieldType == model.FieldTypeAttachments {
			value = fmt.Sprintf("%d attachment(s)", len(f.AttachmentRefs))
		} else if f.MappingMethod == model.MappingPath {
			value = f.Path + " = " + value
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
			f.ShortName, f.FieldType, f.MappingMethod, f.Enabled,
			truncate(value, 50), fieldState(f))
	}
	w.Flush()
}

func fieldState(f model.MappedField) string {
	switch {
	case f.Locked:
		return ui.RenderFail("locked: " + f.LockedReason)
	case f.State.ResolveError != "":
		return ui.RenderWarn(truncate(f.State.ResolveError, 40))
	case f.State.InvalidDate:
		return ui.RenderWarn("invalid date")
	case f.State.Unresolvable:
		return ui.RenderWarn("unresolvable")
	case f.State.OptionMismatch:
		return ui.RenderWarn("not a select option")
	}
	return ""
}

func printDiagnostics(diags []mapping.Diagnostic) {
	for _, d := range diags {
		line := fmt.Sprintf("  %s: %s", d.Field, d.Kind)
		if d.Message != "" {
			line += " (" + d.Message + ")"
		}
		if d.Omitted {
			line += " [omitted]"
		}
		fmt.Fprintln(os.Stderr, ui.RenderWarn(line))
	}
}

func printResultTable(results []model.PairResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONFIG\tSERVER\tSTATUS\tINCIDENT\tATTACHMENTS\tERROR")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Config, r.Server, ui.Status(r.Success), r.IncidentID, r.Attachments, truncate(r.Error, 60))
	}
	w.Flush()
}

func printRun(run *model.Run) {
	printResultTable(run.Results)
	fmt.Printf("\nrun %s: %d submitted, %d failed (%s)\n",
		run.ID, len(run.Results), run.Failed(), run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
}

func printNames(header string, names []string) {
	if len(names) == 0 {
		fmt.Println(ui.RenderMuted("(none)"))
		return
	}
	fmt.Println(ui.RenderAccent(header))
	fmt.Println("  " + strings.Join(names, "\n  "))
}
