package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/feeder/internal/mapping"
	"github.com/alfredjeanlab/feeder/internal/model"
)

var fieldCmd = &cobra.Command{
	Use:     "field",
	Short:   "Edit the mapped fields of an incident config",
	GroupID: "mapping",
}

// editFields opens the config named by args[0], applies fn to it and saves
// it when fn succeeds.
func editFields(fn func(e *editor, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		e, err := openEditor(cmd.Context(), args[0], server)
		if err != nil {
			return err
		}
		if err := fn(e, args[1:]); err != nil {
			return err
		}
		if err := e.save(cmd.Context()); err != nil {
			return err
		}
		if !jsonOutput {
			printFieldTable(e.sess.Fields())
		}
		return nil
	}
}

var fieldAddCmd = &cobra.Command{
	Use:   "add <config> <field>...",
	Short: "Map schema fields",
	Args:  cobra.MinimumNArgs(2),
	RunE: editFields(func(e *editor, names []string) error {
		for _, n := range names {
			if err := e.sess.AddField(n); err != nil {
				return err
			}
		}
		return nil
	}),
}

var fieldRemoveCmd = &cobra.Command{
	Use:   "remove <config> <field>...",
	Short: "Unmap fields",
	Args:  cobra.MinimumNArgs(2),
	RunE: editFields(func(e *editor, names []string) error {
		for _, n := range names {
			if !e.sess.RemoveField(n) {
				return fmt.Errorf("%w: %s", mapping.ErrFieldNotMapped, n)
			}
		}
		return nil
	}),
}

var fieldPathCmd = &cobra.Command{
	Use:   "path <config> <field> <expression>",
	Short: "Take a field's value from a path into the source document",
	Args:  cobra.ExactArgs(3),
	RunE: editFields(func(e *editor, args []string) error {
		return e.sess.SetPath(args[0], args[1])
	}),
}

var fieldStaticCmd = &cobra.Command{
	Use:   "static <config> <field> <value>",
	Short: "Give a field a fixed value (JSON literal or plain text)",
	Args:  cobra.ExactArgs(3),
	RunE: editFields(func(e *editor, args []string) error {
		return e.sess.SetStatic(args[0], parseLiteral(args[1]))
	}),
}

var fieldMethodCmd = &cobra.Command{
	Use:   "method <config> <field> <static|path>",
	Short: "Switch a field between static and path mapping",
	Args:  cobra.ExactArgs(3),
	RunE: editFields(func(e *editor, args []string) error {
		return e.sess.SetMappingMethod(args[0], model.MappingMethod(args[1]))
	}),
}

var fieldEnableCmd = &cobra.Command{
	Use:   "enable <config> <field>...",
	Short: "Include fields in the payload (locked fields stay disabled)",
	Args:  cobra.MinimumNArgs(2),
	RunE: editFields(func(e *editor, names []string) error {
		for _, n := range names {
			if err := e.sess.Enable(n); err != nil {
				return err
			}
		}
		return nil
	}),
}

var fieldDisableCmd = &cobra.Command{
	Use:   "disable <config> <field>...",
	Short: "Exclude fields from the payload",
	Args:  cobra.MinimumNArgs(2),
	RunE: editFields(func(e *editor, names []string) error {
		for _, n := range names {
			if err := e.sess.Disable(n); err != nil {
				return err
			}
		}
		return nil
	}),
}

var fieldResetCmd = &cobra.Command{
	Use:   "reset <config> <field>",
	Short: "Rebuild a field from the current schema",
	Args:  cobra.ExactArgs(2),
	RunE: editFields(func(e *editor, args []string) error {
		return e.sess.ResetField(args[0])
	}),
}

var (
	dateAuto      bool
	dateFormatter string
	datePrecision int64
	dateOffset    float64
)

var fieldDateCmd = &cobra.Command{
	Use:   "date <config> <field>",
	Short: "Configure how a date field parses its source",
	Args:  cobra.ExactArgs(2),
	RunE: editFields(func(e *editor, args []string) error {
		dc := model.DateConfig{
			AutoParse: dateAuto,
			Formatter: dateFormatter,
			Precision: datePrecision,
		}
		if dateOffset != 0 {
			dc.UTCOffsetEnabled = true
			dc.UTCOffset = dateOffset
		}
		return e.sess.SetDateConfig(args[0], dc)
	}),
}

var (
	attachFilename string
	attachComment  string
	attachMedia    bool
)

var fieldAttachCmd = &cobra.Command{
	Use:   "attach <config> <field> <attachment-id>...",
	Short: "Add stored attachments to an attachments field",
	Args:  cobra.MinimumNArgs(3),
	RunE: editFields(func(e *editor, args []string) error {
		refs := make([]model.AttachmentRef, 0, len(args)-1)
		for _, id := range args[1:] {
			refs = append(refs, model.AttachmentRef{
				AttachmentID:      id,
				Filename:          attachFilename,
				Comment:           attachComment,
				MediaFile:         attachMedia,
				OverrideFilename:  attachFilename != "",
				OverrideComment:   attachComment != "",
				OverrideMediaFile: attachMedia,
			})
		}
		return e.sess.AddAttachments(args[0], refs...)
	}),
}

var fieldDetachCmd = &cobra.Command{
	Use:   "detach <config> <field> <attachment-id>",
	Short: "Remove an attachment from an attachments field",
	Args:  cobra.ExactArgs(3),
	RunE: editFields(func(e *editor, args []string) error {
		if !e.sess.RemoveAttachment(args[0], args[1]) {
			return fmt.Errorf("attachment %s is not on field %s", args[1], args[0])
		}
		return nil
	}),
}

func init() {
	cmds := []*cobra.Command{
		fieldAddCmd, fieldRemoveCmd, fieldPathCmd, fieldStaticCmd, fieldMethodCmd,
		fieldEnableCmd, fieldDisableCmd, fieldResetCmd, fieldDateCmd, fieldAttachCmd, fieldDetachCmd,
	}
	for _, c := range cmds {
		c.Flags().String("server", "", "server whose schema to map against (default server if empty)")
		fieldCmd.AddCommand(c)
	}

	fieldDateCmd.Flags().BoolVar(&dateAuto, "auto", true, "recognize the date format automatically")
	fieldDateCmd.Flags().StringVar(&dateFormatter, "format", "", "explicit format, e.g. DD/MM/YYYY HH:mm (implies --auto=false)")
	fieldDateCmd.Flags().Int64Var(&datePrecision, "precision", model.PrecisionSeconds, "epoch units per second: 1, 1000, 1000000 or 1000000000")
	fieldDateCmd.Flags().Float64Var(&dateOffset, "offset", 0, "hours to add after parsing")
	fieldDateCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if dateFormatter != "" && !cmd.Flags().Changed("auto") {
			dateAuto = false
		}
	}

	fieldAttachCmd.Flags().StringVar(&attachFilename, "filename", "", "upload under this filename")
	fieldAttachCmd.Flags().StringVar(&attachComment, "comment", "", "upload with this comment")
	fieldAttachCmd.Flags().BoolVar(&attachMedia, "media", false, "upload as a media file")
}
