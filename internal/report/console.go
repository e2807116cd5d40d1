package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"siglab/internal/backtest"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// signStyle colors positive values green and negative values red.
func signStyle(v float64) lipgloss.Style {
	switch {
	case v > 0:
		return gainStyle
	case v < 0:
		return lossStyle
	default:
		return lipgloss.NewStyle()
	}
}

// RenderMetrics returns a boxed, colored summary of m.
func RenderMetrics(symbol, strategy string, m backtest.Metrics) string {
	rows := []struct {
		label string
		value string
		raw   float64
	}{
		{"Total return", fmt.Sprintf("%+.2f%%", m.TotalReturn*100), m.TotalReturn},
		{"CAGR", fmt.Sprintf("%+.2f%%", m.CAGR*100), m.CAGR},
		{"Max drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100), m.MaxDrawdown},
		{"Sharpe", fmt.Sprintf("%.3f", m.Sharpe), m.Sharpe},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(symbol + "  " + strategy))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-13s", r.label)))
		b.WriteString(signStyle(r.raw).Render(fmt.Sprintf("%10s", r.value)))
	}
	return boxStyle.Render(b.String())
}

// PrintMetrics writes the rendered summary to w.
func PrintMetrics(w io.Writer, symbol, strategy string, m backtest.Metrics) error {
	_, err := fmt.Fprintln(w, RenderMetrics(symbol, strategy, m))
	return err
}

// FormatMetrics returns a single uncolored line of the form
// "Metrics: {'TotalReturn': x, 'CAGR': x, 'MaxDrawdown': x, 'Sharpe': x}".
func FormatMetrics(m backtest.Metrics) string {
	return fmt.Sprintf("Metrics: {'TotalReturn': %s, 'CAGR': %s, 'MaxDrawdown': %s, 'Sharpe': %s}",
		formatMetric(m.TotalReturn), formatMetric(m.CAGR),
		formatMetric(m.MaxDrawdown), formatMetric(m.Sharpe))
}

func formatMetric(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
