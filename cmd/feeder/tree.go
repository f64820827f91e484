package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/feeder/internal/jsontree"
	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/mapping"
	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/ui"
)

// readDocument loads a document from a file, from stdin ("-"), or from the
// library ("json:<name>").
func readDocument(ctx context.Context, src string) (jsonval.Value, error) {
	if name, ok := strings.CutPrefix(src, "json:"); ok {
		a, err := openApp(ctx)
		if err != nil {
			return jsonval.Value{}, err
		}
		return a.lib.LoadDocument(ctx, name)
	}
	data, err := readSource(src)
	if err != nil {
		return jsonval.Value{}, err
	}
	doc, err := jsonval.Decode(data)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("%s: %w", src, err)
	}
	return doc, nil
}

func readSource(src string) ([]byte, error) {
	if src == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(src)
}

type treeEntry struct {
	Path       string `json:"path"`
	Key        string `json:"key"`
	Type       string `json:"type"`
	Length     int    `json:"length,omitempty"`
	Value      any    `json:"value,omitempty"`
	Selectable *bool  `json:"selectable,omitempty"`
}

var treeCmd = &cobra.Command{
	Use:     "tree <file|json:name|->",
	Short:   "Show every node of a JSON document with the path that selects it",
	GroupID: "mapping",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		depth, _ := cmd.Flags().GetInt("depth")
		forType, _ := cmd.Flags().GetString("for")

		doc, err := readDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		var ft model.FieldType
		if forType != "" {
			ft = model.ParseFieldType(forType)
			if ft == model.FieldTypeUndefined {
				return fmt.Errorf("unknown field type %q", forType)
			}
		}

		var entries []treeEntry
		var visit func(s jsontree.Segment, level int)
		visit = func(s jsontree.Segment, level int) {
			e := treeEntry{Path: s.Path, Key: s.Key, Type: s.ValueType.String(), Length: s.Length}
			if !s.Expandable {
				e.Value = s.Value.ToAny()
			}
			if ft != "" {
				ok := s.SelectableFor(ft)
				e.Selectable = &ok
			}
			if jsonOutput {
				entries = append(entries, e)
			} else {
				printTreeLine(e, level)
			}
			if depth > 0 && level+1 >= depth {
				return
			}
			for _, c := range s.Children() {
				visit(c, level+1)
			}
		}
		for _, s := range jsontree.Index(doc) {
			visit(s, 0)
		}
		if jsonOutput {
			return printJSON(entries)
		}
		return nil
	},
}

func printTreeLine(e treeEntry, level int) {
	indent := strings.Repeat("  ", level)
	var detail string
	if e.Type == "array" || e.Type == "object" {
		detail = fmt.Sprintf("%s[%d]", e.Type, e.Length)
	} else {
		detail = truncate(jsonval.FromAny(e.Value).Text(), 40)
	}
	line := fmt.Sprintf("%s%s  %s", indent, ui.RenderCommand(e.Path), ui.RenderMuted(detail))
	if e.Selectable != nil && !*e.Selectable {
		line = fmt.Sprintf("%s%s  %s", indent, ui.RenderMuted(e.Path), ui.RenderMuted(detail))
	}
	fmt.Println(line)
}

var resolveCmd = &cobra.Command{
	Use:     "resolve <file|json:name|-> <path>",
	Short:   "Evaluate a path expression against a JSON document",
	GroupID: "mapping",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asType, _ := cmd.Flags().GetString("as")

		doc, err := readDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		res, err := jsontree.Resolve(doc, args[1])
		if err != nil {
			return err
		}
		if res.Unset {
			return fmt.Errorf("empty path")
		}
		out := res.Value
		if asType != "" {
			ft := model.ParseFieldType(asType)
			out, err = coerceForDisplay(res, ft)
			if err != nil {
				return err
			}
		}
		data, err := out.MarshalJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	treeCmd.Flags().Int("depth", 0, "maximum depth to print (0 = all)")
	treeCmd.Flags().String("for", "", "mute nodes that cannot feed a field of this type")
	resolveCmd.Flags().String("as", "", "coerce the result to a field type")
}

// coerceForDisplay shows what a field of type ft would receive from res.
func coerceForDisplay(res jsontree.Resolution, ft model.FieldType) (jsonval.Value, error) {
	switch ft {
	case model.FieldTypeUndefined, model.FieldTypeAttachments:
		return jsonval.Value{}, fmt.Errorf("cannot map a path onto a %s field", ft)
	case model.FieldTypeDate:
		d := mapping.TransformDate(res, model.DefaultDateConfig(), "")
		return jsonval.StringValue(d.Value), nil
	}
	c := mapping.Coerce(res.Value, ft)
	if c.Unresolvable {
		fmt.Fprintln(os.Stderr, ui.RenderWarn("unresolvable: "+c.Reason))
	}
	return c.Value, nil
}
