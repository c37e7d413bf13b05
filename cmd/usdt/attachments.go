package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Manage evidence files",
}

var attachAddCmd = &cobra.Command{
	Use:   "add TX_ID FILE...",
	Short: "Attach evidence files to a transaction",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "AttachFile")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		for _, path := range args[1:] {
			att, err := a.Attach(cmd.Context(), sess, args[0], path)
			if err != nil {
				return fmt.Errorf("attaching %s: %w", path, err)
			}
			fmt.Printf("Attached %s (%s, %d bytes) as %s\n", att.FileName, att.MediaKind, att.FileSize, att.ID)
		}
		return nil
	},
}

var attachListCmd = &cobra.Command{
	Use:   "list TX_ID",
	Short: "List a transaction's evidence files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "ListAttachments")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		list, err := a.ListAttachments(cmd.Context(), sess, args[0])
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No attachments.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tKIND\tSIZE\tENCRYPTED\tLOCATOR")
		for _, att := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n", att.ID, att.FileName, att.MediaKind, att.FileSize, att.Encrypted, att.PublicLocator)
		}
		return w.Flush()
	},
}

var attachGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Download an evidence file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd, "FetchAttachment")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}

		var passphrase string
		if a.NeedsPassphrase() {
			passphrase, err = readSecret("USDT_KEY_PASSPHRASE", "Key passphrase")
			if err != nil {
				return err
			}
		}

		var w io.Writer = os.Stdout
		if output != "-" {
			dir := "."
			if output != "" {
				dir = filepath.Dir(output)
			}
			tmp, err := os.CreateTemp(dir, ".usdt-download-*")
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer os.Remove(tmp.Name())
			defer tmp.Close()
			w = tmp

			att, err := a.FetchAttachment(cmd.Context(), sess, args[0], w, passphrase)
			if err != nil {
				return err
			}
			dest := output
			if dest == "" {
				dest = att.FileName
			}
			if err := tmp.Close(); err != nil {
				return fmt.Errorf("writing output file: %w", err)
			}
			if err := os.Rename(tmp.Name(), dest); err != nil {
				return fmt.Errorf("saving %s: %w", dest, err)
			}
			fmt.Fprintf(os.Stderr, "Saved %s\n", dest)
			return nil
		}

		_, err = a.FetchAttachment(cmd.Context(), sess, args[0], w, passphrase)
		return err
	},
}

var attachDeleteCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete an evidence file (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "DeleteAttachment")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		if err := a.DeleteAttachment(cmd.Context(), sess, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted attachment %s\n", args[0])
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a copy of the database to the vault (admin)",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "BackupDatabase")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		actor, err := login(cmd, a)
		if err != nil {
			return err
		}
		key, err := a.Backup(cmd.Context(), actor)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Database backed up to %s\n", key)
		return nil
	},
}

func init() {
	attachCmd.AddCommand(attachAddCmd)
	attachCmd.AddCommand(attachListCmd)
	attachCmd.AddCommand(attachGetCmd)
	attachGetCmd.Flags().StringP("output", "o", "", "Output path, - for stdout (default: original file name)")
	attachCmd.AddCommand(attachDeleteCmd)
}
