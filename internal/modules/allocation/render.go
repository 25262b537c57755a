package allocation

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
)

var modeTitles = map[Mode]string{
	ModeRiskAware:  "Risk-aware",
	ModeProfitOnly: "Profit-only",
}

// Render writes a plain-text comparison of every mode in r.
func Render(w io.Writer, r Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Budget: %s\n", amount(r.Budget))

	for _, mr := range r.Modes {
		title := modeTitles[mr.Mode]
		if title == "" {
			title = string(mr.Mode)
		}
		fmt.Fprintf(&b, "\n== %s ==\n", title)

		if mr.NothingToBuy {
			b.WriteString("Nothing to buy\n")
			continue
		}

		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Symbol\tShares\tPrice\tCost\tCapital Gain\tDividend Income\tExpenses\tNet Profit\t")
		for _, l := range mr.Lines {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				l.Symbol, l.Shares, amount(l.Price), amount(l.Cost),
				amount(l.CapitalGain), amount(l.DividendIncome), amount(l.Fee), amount(l.NetProfit))
		}
		t := mr.Totals
		fmt.Fprintf(tw, "Total\t%d\t\t%s\t%s\t%s\t%s\t%s\t\n",
			t.Shares, amount(t.Cost), amount(t.CapitalGain), amount(t.DividendIncome), amount(t.Fee), amount(t.NetProfit))
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(&b, "Budget left: %s\n", amount(t.BudgetLeft))
		if t.RealizedValue != nil && t.RealizedProfit != nil {
			fmt.Fprintf(&b, "Realized value: %s (profit %s)\n", amount(*t.RealizedValue), amount(*t.RealizedProfit))
		}
		fmt.Fprintf(&b, "Risk: volatility %.4f, sector %.4f, overlap %.4f, blended %.4f\n",
			mr.Risk.Volatility, mr.Risk.Sector, mr.Risk.Overlap, mr.Risk.Blended)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func amount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
