package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"usdt-ledger/internal/accounting"
	"usdt-ledger/internal/app"
	"usdt-ledger/internal/ledger"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show profit reports",
}

var reportDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show one day's activity and position",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		date, _ := cmd.Flags().GetString("date")

		a, err := newApp(cmd, "DailyReport")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		snap, err := a.Report(cmd.Context(), sess, date)
		if err != nil {
			return err
		}
		return printDaily(os.Stdout, snap.Daily)
	},
}

var reportWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Show activity per ISO week",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "WeeklyReport")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		snap, err := a.Report(cmd.Context(), sess, "")
		if err != nil {
			return err
		}
		return printWeekly(os.Stdout, snap.Weekly)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Redraw the daily report whenever the ledger changes",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		date, _ := cmd.Flags().GetString("date")

		a, err := newApp(cmd, "Watch")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		sess, err := openSession(cmd, a)
		if err != nil {
			return err
		}
		return a.Watch(cmd.Context(), sess, date, func(snap *ledger.Snapshot) {
			fmt.Printf("\n== %s  %s  (%d transactions) ==\n", sess.Ledger.Name, snap.FetchedAt.In(a.Zone()).Format("15:04:05"), len(snap.Transactions))
			printDaily(os.Stdout, snap.Daily)
		})
	},
}

func printDaily(out io.Writer, d accounting.DailySummary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Date\t%s\n", d.Date)
	fmt.Fprintf(w, "Opening\t%s @ %s\n", app.FormatQuantity(d.OpeningQuantity()), app.FormatPrice(d.Opening.AvgCost()))
	fmt.Fprintf(w, "Bought\t%s for %s\n", app.FormatQuantity(d.BuyQuantity), app.FormatAmount(d.BuyAmount))
	fmt.Fprintf(w, "Sold\t%s for %s\n", app.FormatQuantity(d.SellQuantity), app.FormatAmount(d.SellAmount))
	fmt.Fprintf(w, "Profit\t%s\n", app.FormatSignedAmount(d.Profit))
	fmt.Fprintf(w, "Closing\t%s @ %s\n", app.FormatQuantity(d.ClosingQuantity()), app.FormatPrice(d.ClosingAvgCost()))
	for _, s := range d.Sales {
		fmt.Fprintf(w, "  sale %s\t%s @ %s (avg %s) %s\n", s.TransactionID, app.FormatQuantity(s.Quantity), app.FormatPrice(s.Price), app.FormatPrice(s.AvgCost), app.FormatSignedAmount(s.Profit))
	}
	return w.Flush()
}

func printWeekly(out io.Writer, weeks []accounting.WeeklySummary) error {
	if len(weeks) == 0 {
		fmt.Fprintln(out, "No transactions.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "WEEK\tBOUGHT\tSOLD\tPROFIT\tHOLDING\tAVG COST\t")
	for _, wk := range weeks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			wk.WeekKey,
			app.FormatQuantity(wk.BuyQuantity),
			app.FormatQuantity(wk.SellQuantity),
			app.FormatSignedAmount(wk.Profit),
			app.FormatQuantity(wk.Closing.Quantity),
			app.FormatPrice(wk.ClosingAvgCost()),
		)
	}
	fmt.Fprintf(w, "TOTAL\t\t\t%s\t\t\t\n", app.FormatSignedAmount(accounting.TotalProfit(weeks)))
	return w.Flush()
}

func init() {
	reportCmd.AddCommand(reportDailyCmd)
	reportDailyCmd.Flags().String("date", "", "Day to report, YYYY-MM-DD (default today)")
	reportCmd.AddCommand(reportWeeklyCmd)
	watchCmd.Flags().String("date", "", "Day to report, YYYY-MM-DD (default today)")
}
