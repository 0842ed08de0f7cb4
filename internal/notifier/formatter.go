package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"DivergenceScanner/internal/model"
)

const tableTimeLayout = "2006-01-02 15:04:05"

// RenderTable renders the ranked results as a plain-text table titled
// "Top N Opportunities as of <time>". Every row carries the batch time.
func RenderTable(top []model.AnalysisResult, at time.Time) string {
	stamp := at.Format(tableTimeLayout)
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("Top %d Opportunities as of %s", len(top), stamp))
	tw.AppendHeader(table.Row{"#", "Ticker", "Raw Grade", "Weighted Grade", "Trade Type", "Market Cap", "Tier", "Timestamp"})
	for i, r := range top {
		tw.AppendRow(table.Row{
			i + 1,
			r.Symbol,
			fmt.Sprintf("%.2f", r.RawGrade),
			fmt.Sprintf("%.2f", r.WeightedGrade),
			string(r.Direction),
			FormatMarketCap(r.MarketCap),
			r.Tier.Label,
			stamp,
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	return tw.Render()
}

// FormatMarketCap abbreviates a capitalisation (3.10T, 850.00M). A missing
// figure prints as "n/a".
func FormatMarketCap(v float64) string {
	switch {
	case v <= 0 || math.IsNaN(v):
		return "n/a"
	case v >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatReport formats a batch summary for Telegram (HTML parse mode).
func FormatReport(top []model.AnalysisResult, total, failed int, at time.Time) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>Divergence scan</b> | %s\n", at.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Symbols: %d | failed: %d\n\n", total, failed))

	if len(top) == 0 {
		b.WriteString("No valid results.\n")
		return b.String()
	}
	for i, r := range top {
		b.WriteString(fmt.Sprintf("%d. <b>%s</b> %s  grade %.2f → %.2f  (%s, %s)\n",
			i+1, html.EscapeString(r.Symbol), directionIcon(r.Direction),
			r.RawGrade, r.WeightedGrade, r.Tier.Label, FormatMarketCap(r.MarketCap)))
		b.WriteString(fmt.Sprintf("   %s\n", formatFlags(r.Divergences)))
	}
	return b.String()
}

func directionIcon(d model.TradeDirection) string {
	switch d {
	case model.DirectionLong:
		return "🟢 long"
	case model.DirectionShort:
		return "🔴 short"
	default:
		return "⚪ neutral"
	}
}

// formatFlags lists the raised divergences, e.g. "weekly: RSI MACD".
func formatFlags(m model.DivergenceMatrix) string {
	var parts []string
	for _, tf := range model.Timeframes {
		f := m[tf.Timeframe]
		if f.Count() == 0 {
			continue
		}
		var names []string
		if f.RSI {
			names = append(names, "RSI")
		}
		if f.MACD {
			names = append(names, "MACD")
		}
		parts = append(parts, fmt.Sprintf("%s: %s", tf.Timeframe, strings.Join(names, " ")))
	}
	if len(parts) == 0 {
		return "no divergence"
	}
	return strings.Join(parts, " | ")
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "<b>Commands</b>\n/top - last ranking\n/scan - run a batch now\n/help - this message"
}
