package notifier

import (
	"fmt"
	"strings"

	"AlertWatch/internal/model"
	"AlertWatch/internal/strategy"
)

// Style selects the markup dialect of the chat channel.
type Style int

const (
	StylePlain Style = iota
	StyleMarkdown
	StyleHTML
)

// Formatter renders signals into chat messages.
type Formatter struct {
	Title    string
	ValidFor string
	Style    Style
}

func (f Formatter) bold(s string) string {
	switch f.Style {
	case StyleMarkdown:
		return "**" + s + "**"
	case StyleHTML:
		return "<b>" + s + "</b>"
	default:
		return s
	}
}

func price(v float64) string { return "$" + strategy.FormatPrice(v) }

// Format renders a signal alert.
func (f Formatter) Format(sig *model.Signal) string {
	title := f.Title
	if title == "" {
		title = "AlertWatch"
	}
	if sig.Test {
		return f.bold(title+" Test Alert") + ": the pipeline is operational and ready to send trades."
	}

	var b strings.Builder
	b.WriteString(f.bold(fmt.Sprintf("%s Alert | %s | LONG", title, sig.Ticker)))
	b.WriteString("\n")

	if z := sig.Zones; z != nil {
		b.WriteString(fmt.Sprintf("• Entry Zone: %s – %s\n", price(z.EntryLow), price(z.EntryHigh)))
		b.WriteString(fmt.Sprintf("• Stop Loss Zone: %s – %s\n", price(z.StopLossLow), price(z.StopLossHigh)))
		b.WriteString(fmt.Sprintf("• Take Profit Zone: %s – %s\n", price(z.TakeProfitLow), price(z.TakeProfitHigh)))
	} else {
		b.WriteString(fmt.Sprintf("• Entry: %s\n", price(sig.Entry)))
		b.WriteString(fmt.Sprintf("• Stop Loss: %s\n", price(sig.StopLoss)))
		b.WriteString(fmt.Sprintf("• Take Profit: %s\n", price(sig.TakeProfit)))
	}
	b.WriteString(fmt.Sprintf("• Confidence Score: %.0f%%\n", sig.Confidence))
	if sig.AllocationPct != nil {
		b.WriteString(fmt.Sprintf("• Allocation: %.0f%%\n", *sig.AllocationPct))
	}
	if f.ValidFor != "" {
		b.WriteString(fmt.Sprintf("• Valid for next %s\n", f.ValidFor))
	}
	if sig.InvalidationLevel != nil {
		b.WriteString("• Notes:\n")
		b.WriteString(fmt.Sprintf("  - Skip if price breaks above %s before entry.\n", price(*sig.InvalidationLevel)))
		b.WriteString("  - Adjust SL depending on actual fill price within entry zone.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatStats renders scanner counters for chat replies.
func (f Formatter) FormatStats(st model.ScanStats) string {
	var b strings.Builder
	b.WriteString(f.bold("Scanner status"))
	b.WriteString("\n\n")
	last := "never"
	if !st.LastScanAt.IsZero() {
		last = st.LastScanAt.Format("2006-01-02 15:04:05 MST")
	}
	b.WriteString(fmt.Sprintf("Last scan: %s\n", last))
	if st.LastReport != nil {
		b.WriteString(fmt.Sprintf("Last outcome: %s (%d/%d tickers, %d alerts)\n",
			st.LastReport.Outcome, st.LastReport.TickersScanned, st.LastReport.TickersTotal, st.LastReport.AlertsFired))
	}
	b.WriteString(fmt.Sprintf("Cycles: %d\n", st.CyclesRun))
	b.WriteString(fmt.Sprintf("Tickers scanned: %d\n", st.TickersScanned))
	b.WriteString(fmt.Sprintf("Alerts fired: %d\n", st.AlertsFired))
	b.WriteString(fmt.Sprintf("API calls used: %d\n", st.APICallsUsed))
	b.WriteString(fmt.Sprintf("Running: %v", st.Running))
	return b.String()
}

// FormatSignal renders a signal with the default plain formatter.
func FormatSignal(sig *model.Signal) string {
	return Formatter{}.Format(sig)
}
