package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"usdt-ledger/internal/app"
	"usdt-ledger/internal/ledger"
	"usdt-ledger/internal/model"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Manage transactions",
}

var txAddCmd = &cobra.Command{
	Use:   "add buy|sell PRICE QUANTITY",
	Short: "Record a transaction",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		at, _ := cmd.Flags().GetString("at")

		a, err := newApp(cmd, "CreateTransaction")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		tx, err := a.AddTransaction(cmd.Context(), sess, args[0], args[1], args[2], at)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %s\n", describeTx(tx))
		return nil
	},
}

var txEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Edit a transaction (operators may edit each record once)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		txType, _ := cmd.Flags().GetString("type")
		price, _ := cmd.Flags().GetString("price")
		qty, _ := cmd.Flags().GetString("qty")
		at, _ := cmd.Flags().GetString("at")
		if txType == "" && price == "" && qty == "" && at == "" {
			return fmt.Errorf("nothing to change: pass --type, --price, --qty or --at")
		}

		a, err := newApp(cmd, "EditTransaction")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		tx, err := a.EditTransaction(cmd.Context(), sess, args[0], txType, price, qty, at)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", describeTx(tx))
		return nil
	},
}

var txDeleteCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a transaction and its evidence (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "DeleteTransaction")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		if err := a.DeleteTransaction(cmd.Context(), sess, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted transaction %s\n", args[0])
		return nil
	},
}

var txClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every transaction of the ledger (admin)",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "DeleteAllTransactions")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		if !confirm(cmd, fmt.Sprintf("Delete every transaction of %s?", sess.Ledger.Name)) {
			fmt.Println("Aborted.")
			return nil
		}
		if err := a.ClearTransactions(cmd.Context(), sess); err != nil {
			return err
		}
		fmt.Printf("Cleared ledger %s\n", sess.Ledger.Name)
		return nil
	},
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions, newest first",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "ListTransactions")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		txs, err := a.ListTransactions(cmd.Context(), sess)
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			fmt.Println("No transactions.")
			return nil
		}
		return printTransactions(a, sess, txs)
	},
}

func printTransactions(a *app.App, sess *ledger.Session, txs []*model.Transaction) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ID\tTIME\tTYPE\tPRICE\tQTY\tTOTAL\tBY\tEDIT\t")
	for _, tx := range txs {
		editable := "-"
		if ledger.CanEdit(sess.Actor, tx) {
			editable = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			tx.ID,
			tx.Timestamp.In(a.Zone()).Format("2006-01-02 15:04"),
			tx.Type,
			app.FormatPrice(tx.Price),
			app.FormatQuantity(tx.Quantity),
			app.FormatAmount(tx.Total),
			tx.AuthorUsername,
			editable,
		)
	}
	return w.Flush()
}

func describeTx(tx *model.Transaction) string {
	return fmt.Sprintf("%s %s %s @ %s = %s (%s)",
		tx.ID, tx.Type, app.FormatQuantity(tx.Quantity), app.FormatPrice(tx.Price), app.FormatAmount(tx.Total), tx.DateKey)
}

func init() {
	txCmd.AddCommand(txAddCmd)
	txAddCmd.Flags().String("at", "", "Time of the trade, YYYY-MM-DD[ HH:MM] in the ledger zone (default now)")

	txCmd.AddCommand(txEditCmd)
	txEditCmd.Flags().String("type", "", "New type: buy or sell")
	txEditCmd.Flags().String("price", "", "New unit price")
	txEditCmd.Flags().String("qty", "", "New quantity")
	txEditCmd.Flags().String("at", "", "New time of the trade")

	txCmd.AddCommand(txDeleteCmd)
	txCmd.AddCommand(txClearCmd)
	txClearCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	txCmd.AddCommand(txListCmd)
}
