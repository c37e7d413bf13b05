package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Manage ledgers",
}

var ledgerCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a ledger (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "CreateLedger")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		actor, err := login(cmd, a)
		if err != nil {
			return err
		}
		secret, err := readSecret("USDT_LEDGER_SECRET", "Secret for the new ledger")
		if err != nil {
			return err
		}

		l, err := a.CreateLedger(cmd.Context(), actor, args[0], secret)
		if err != nil {
			return err
		}
		fmt.Printf("Created ledger %s (%s)\n", l.Name, l.ID)
		return nil
	},
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledgers",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "ListLedgers")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		actor, err := login(cmd, a)
		if err != nil {
			return err
		}
		infos, err := a.ListLedgers(cmd.Context(), actor)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No ledgers.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCREATED BY\tCREATED")
		for _, l := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.ID, l.Name, l.CreatedBy, l.CreatedAt.In(a.Zone()).Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var ledgerDeleteCmd = &cobra.Command{
	Use:   "rm LEDGER",
	Short: "Delete a ledger with all its transactions and evidence (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "DeleteLedger")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		actor, err := login(cmd, a)
		if err != nil {
			return err
		}
		if !confirm(cmd, fmt.Sprintf("Delete ledger %s and everything in it?", args[0])) {
			fmt.Println("Aborted.")
			return nil
		}
		if err := a.DeleteLedger(cmd.Context(), actor, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted ledger %s\n", args[0])
		return nil
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerCreateCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerDeleteCmd)
	ledgerDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}
