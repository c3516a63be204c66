package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"spending/internal/services"
)

// PrintReport renders a run report as two tables: run totals, then one row
// per failed account.
func PrintReport(w io.Writer, r *services.RunReport) {
	if r == nil {
		fmt.Fprintln(w, "no report: the run aborted before the batch started")
		return
	}

	totals := tablewriter.NewWriter(w)
	totals.SetHeader([]string{"Metric", "Value"})
	totals.AppendBulk([][]string{
		{"Run ID", r.RunID},
		{"Duration", r.Duration().String()},
		{"Accounts", strconv.Itoa(r.Accounts)},
		{"Chunks", strconv.Itoa(r.Chunks)},
		{"Succeeded", strconv.Itoa(r.Succeeded)},
		{"Failed", strconv.Itoa(r.Failed())},
		{"Unlinked accounts", strconv.Itoa(r.UnlinkedAccounts)},
		{"Transactions read", strconv.Itoa(r.TransactionsRead)},
		{"Dropped transactions", fmt.Sprintf("%d (%.2f%%)", r.DroppedTransactions, r.DropRate()*100)},
		{"Months written", strconv.Itoa(r.MonthsWritten)},
		{"Days written", strconv.Itoa(r.DaysWritten)},
	})
	totals.Render()

	if len(r.Failures) == 0 {
		return
	}

	failures := make([]services.AccountFailure, len(r.Failures))
	copy(failures, r.Failures)
	sort.Slice(failures, func(i, j int) bool { return failures[i].AccountID < failures[j].AccountID })

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Account", "Reason", "Error"})
	table.SetAutoWrapText(false)
	for _, f := range failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		table.Append([]string{f.AccountID, f.Reason, msg})
	}
	table.Render()
}
