package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"PairSentinel/internal/model"
	"PairSentinel/internal/screener"
)

// ResultFileName is the name of the attached result table.
const ResultFileName = "cointegrated_pairs.csv"

// FormatRunReport renders a finished run into a deliverable report. csv is the
// persisted result table and is attached as is when the run succeeded.
func FormatRunReport(st screener.Status, topN int, csv []byte) Report {
	var b, plain strings.Builder
	date := time.Now().Format("2006-01-02 15:04")
	if st.Report != nil && !st.Report.StartedAt.IsZero() {
		date = st.Report.StartedAt.Format("2006-01-02 15:04")
	}

	if !st.OK {
		subject := "PairSentinel run failed | " + date
		fmt.Fprintf(&b, "❌ <b>PairSentinel</b> | %s\n\nRun failed: %s", date, html.EscapeString(st.Reason))
		fmt.Fprintf(&plain, "Screening run failed at %s\n\n%s\n", date, st.Reason)
		return Report{Subject: subject, Text: b.String(), PlainText: plain.String()}
	}

	rep := st.Report
	subject := fmt.Sprintf("PairSentinel: %d cointegrated pairs | %s", rep.Cointegrated, date)
	fmt.Fprintf(&b, "📊 <b>PairSentinel</b> | %s\n\n", date)
	fmt.Fprintf(&b, "Symbols: %d (eligible %d)\n", rep.Symbols, rep.Eligible)
	fmt.Fprintf(&b, "Pairs tested: %d | failed: %d\n", rep.PairsTested, rep.Failed)
	fmt.Fprintf(&b, "Cointegrated: <b>%d</b>\n", rep.Cointegrated)
	fmt.Fprintf(&b, "Duration: %s\n", rep.Duration.Round(time.Millisecond))
	if rep.Cointegrated > 0 {
		b.WriteString("\n")
		b.WriteString(FormatTopPairs(rep.Table, topN))
	}

	fmt.Fprintf(&plain, "Screening run %s finished at %s\n\n", rep.RunID, date)
	fmt.Fprintf(&plain, "Symbols: %d (eligible %d)\nPairs tested: %d\nFailed: %d\nCointegrated: %d\n",
		rep.Symbols, rep.Eligible, rep.PairsTested, rep.Failed, rep.Cointegrated)
	if rep.Cointegrated > 0 {
		plain.WriteString("\n")
		plain.WriteString(pairsTable(rep.Table, topN))
	}

	r := Report{Subject: subject, Text: b.String(), PlainText: plain.String()}
	if len(csv) > 0 {
		r.Attachment = &Attachment{Name: ResultFileName, ContentType: "text/csv", Data: csv}
	}
	return r
}

// FormatTopPairs renders the leading rows as a preformatted Telegram block.
func FormatTopPairs(table *model.ResultTable, n int) string {
	if table.Len() == 0 {
		return "No cointegrated pairs in the latest table."
	}
	rows := table.Top(n)
	return fmt.Sprintf("🏆 <b>Top %d by zero crossings</b>\n<pre>%s</pre>", len(rows), html.EscapeString(pairsTable(table, n)))
}

func pairsTable(table *model.ResultTable, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-3s %-22s %7s %8s %5s\n", "#", "pair", "p", "hedge", "zc")
	for i, r := range table.Top(n) {
		fmt.Fprintf(&b, "%-3d %-22s %7.4f %8.4f %5d\n", i+1, r.Sym1+"/"+r.Sym2, r.PValue, r.HedgeRatio, r.ZeroCrossings)
	}
	return b.String()
}

// FormatStatus describes the last run, or says none has completed yet.
func FormatStatus(st *screener.Status, running bool) string {
	var b strings.Builder
	b.WriteString("📦 <b>PairSentinel status</b>\n\n")
	if running {
		b.WriteString("A run is in progress.\n")
	}
	if st == nil {
		b.WriteString("No run has completed yet.")
		return b.String()
	}
	outcome := "ok"
	if !st.OK {
		outcome = "failed"
	}
	fmt.Fprintf(&b, "Last run: %s\n", outcome)
	if st.Report != nil {
		fmt.Fprintf(&b, "Started: %s\n", st.Report.StartedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "Detail: %s", html.EscapeString(st.Reason))
	return b.String()
}

// HelpText lists the bot commands.
func HelpText() string {
	return "Available commands:\n• /top [n] show the top ranked pairs\n• /status last run outcome\n• /run start a screening pipeline now"
}
