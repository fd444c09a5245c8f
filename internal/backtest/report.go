package backtest

import (
	"fmt"
	"strings"
)

// RenderReport formats a scored run for logger.InfoBlock.
func RenderReport(res Result) string {
	var b strings.Builder
	s := res.Summary
	b.WriteString("===== Backtest Report =====\n")
	fmt.Fprintf(&b, "Scored: %d  Unmatched: %d  Skipped: %d\n", s.Total, s.Unmatched, s.Skipped)
	fmt.Fprintf(&b, "Accuracy: %.2f%% (%d/%d)\n", s.Accuracy*100, s.Correct, s.Total)
	fmt.Fprintf(&b, "Precision: %.4f  Recall: %.4f  F1: %.4f\n", s.Precision, s.Recall, s.F1)
	fmt.Fprintf(&b, "Bullish: %d/%d correct  Bearish: %d/%d correct\n",
		s.BullishCorrect, s.BullishTotal, s.BearishCorrect, s.BearishTotal)
	m := res.Movers
	if m.Count > 0 {
		fmt.Fprintf(&b, "Movers (>%.2f%%): %d, min confidence %.4f\n", m.Threshold, m.Count, m.MinConfidence)
		fmt.Fprintf(&b, "  %s\n", strings.Join(m.Symbols, ", "))
	} else {
		fmt.Fprintf(&b, "Movers (>%.2f%%): none\n", m.Threshold)
	}
	b.WriteString("===========================")
	return b.String()
}
