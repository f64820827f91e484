package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/feeder/internal/library"
	"github.com/alfredjeanlab/feeder/internal/model"
)

// --- JSON configs ---

var jsonCmd = &cobra.Command{
	Use:     "json",
	Short:   "Manage saved source documents",
	GroupID: "library",
}

var jsonAddCmd = &cobra.Command{
	Use:   "add <name> <file|->",
	Short: "Save a JSON document under a name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readSource(args[1])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.lib.SaveJSONConfig(cmd.Context(), &model.JSONConfig{Name: args[0], Document: data}); err != nil {
			return err
		}
		fmt.Printf("json config %q saved\n", args[0])
		return nil
	},
}

var jsonShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a saved JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		doc, err := a.lib.LoadDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

var jsonListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved JSON documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		cfgs, err := a.lib.ListJSONConfigs(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cfgs)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tUPDATED")
		for _, c := range cfgs {
			fmt.Fprintf(w, "%s\t%d\t%s\n", c.Name, len(c.Document), c.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var jsonDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a JSON document; groups and incident configs drop their references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.lib.DeleteJSONConfig(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("json config %q deleted\n", args[0])
		return nil
	},
}

// --- Groups ---

var groupCmd = &cobra.Command{
	Use:     "group",
	Short:   "Manage groups of JSON documents for raw bulk runs",
	GroupID: "library",
}

var groupSetCmd = &cobra.Command{
	Use:   "set <name> <json-config>...",
	Short: "Create or replace a group",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		g := &model.JSONGroup{Name: args[0], Members: args[1:]}
		if err := a.lib.SaveGroup(cmd.Context(), g); err != nil {
			return err
		}
		fmt.Printf("group %q saved (%d members)\n", g.Name, len(g.Members))
		return nil
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		groups, err := a.lib.ListGroups(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(groups)
		}
		for _, g := range groups {
			printNames(g.Name+":", g.Members)
		}
		return nil
	},
}

var groupDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		return a.lib.DeleteGroup(cmd.Context(), args[0])
	},
}

// --- Attachments ---

var attachmentCmd = &cobra.Command{
	Use:     "attachment",
	Short:   "Manage stored attachment files",
	GroupID: "library",
}

var attachmentAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Store a file for use in attachment fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		comment, _ := cmd.Flags().GetString("comment")
		media, _ := cmd.Flags().GetBool("media")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if name == "" {
			name = filepath.Base(args[0])
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		att, err := a.lib.AddAttachment(cmd.Context(), name, data, library.AttachmentOptions{
			MediaFile: media,
			Comment:   comment,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(att)
		}
		fmt.Printf("attachment %s stored (%s, %d bytes)\n", att.ID, att.Filename, att.Size)
		return nil
	},
}

var attachmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored attachments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		atts, err := a.lib.ListAttachments(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(atts)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILENAME\tTYPE\tSIZE\tMEDIA\tCOMMENT")
		for _, at := range atts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n",
				at.ID, at.Filename, at.ContentType, at.Size, at.MediaFile, truncate(at.Comment, 40))
		}
		return w.Flush()
	},
}

var attachmentGetCmd = &cobra.Command{
	Use:   "get <id> [<output>]",
	Short: "Write a stored attachment to a file (default: its filename)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		att, data, err := a.lib.AttachmentContent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := att.Filename
		if len(args) == 2 {
			out = args[1]
		}
		if out == "-" {
			_, err := os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(out, data, 0o644)
	},
}

var attachmentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an attachment; incident configs drop their references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.lib.DeleteAttachment(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("attachment %s deleted\n", args[0])
		return nil
	},
}

func init() {
	jsonCmd.AddCommand(jsonAddCmd, jsonShowCmd, jsonListCmd, jsonDeleteCmd)
	groupCmd.AddCommand(groupSetCmd, groupListCmd, groupDeleteCmd)

	attachmentAddCmd.Flags().String("name", "", "filename to upload as (default: base name of the file)")
	attachmentAddCmd.Flags().String("comment", "", "comment sent with the upload")
	attachmentAddCmd.Flags().Bool("media", false, "upload as a media file")
	attachmentCmd.AddCommand(attachmentAddCmd, attachmentListCmd, attachmentGetCmd, attachmentDeleteCmd)
}

