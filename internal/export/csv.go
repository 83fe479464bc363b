// Package export renders calculation results into the flat cost-sheet
// layout buyers work with: a header block, a totals block, then one row
// per line.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/petalroute/landedcost/internal/landed"
)

// WriteCSV writes the cost sheet for a calculation result. Column order
// follows the historical spreadsheet report; the caller owns headers and
// framing of the underlying writer (HTTP attachment, file, buffer).
func WriteCSV(w io.Writer, res landed.Result) error {
	cw := csv.NewWriter(w)

	header := [][]string{
		{"AWB", res.AWB},
		{"Rate per KG", num(res.RatePerKg)},
		{"Duty rate", num(res.DutyRate)},
		{"Trucking total", num(res.Totals.TruckingTotal)},
	}
	for i, m := range res.Margins {
		header = append(header, []string{fmt.Sprintf("Margin %d", i+1), num(m)})
	}
	header = append(header,
		nil,
		[]string{"TOTAL BOXES", strconv.Itoa(res.Totals.TotalBoxes)},
		[]string{"TOTAL KILOS", num(res.Totals.TotalKilos)},
		[]string{"TOTAL INVOICE", num(res.Totals.TotalInvoice)},
		[]string{"FREIGHT TOTAL", num(res.Totals.FreightTotal)},
		[]string{"DUTY TOTAL", num(res.Totals.DutyTotal)},
		[]string{"GRAND LANDED", num(res.Totals.GrandLandedTotal)},
	)
	if res.Projection != nil {
		header = append(header,
			[]string{"EXTRA EXPENSES", num(res.Projection.ExtraExpenses)},
			[]string{"TOTAL INVESTMENT", num(res.Projection.TotalInvestment)},
			[]string{"REQUIRED SALES", num(res.Projection.RequiredSales)},
			[]string{"EXPECTED PROFIT", num(res.Projection.ExpectedProfit)},
		)
	}
	header = append(header, nil)

	for _, row := range header {
		if row == nil {
			row = []string{}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv header row: %w", err)
		}
	}

	if err := cw.Write(columnHeaders(res.Margins)); err != nil {
		return fmt.Errorf("write csv column headers: %w", err)
	}

	for i, ln := range res.Lines {
		if err := cw.Write(lineRow(i+1, ln)); err != nil {
			return fmt.Errorf("write csv line %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func columnHeaders(margins []float64) []string {
	cols := []string{
		"#",
		"FINCA", "ORIGIN", "PRODUCT", "BOX TYPE", "BOXES",
		"BUNCH/BOX", "STEMS/BUNCH", "KG/BOX", "PRICE/BUNCH",
		"INVOICE/BOX", "INVOICE LINE", "KG LINE",
		"FREIGHT ALLOC", "DUTY ALLOC", "TRUCKING ALLOC",
		"LANDED LINE",
		"COST/BOX", "COST/BUNCH", "COST/STEM",
	}
	for _, m := range margins {
		cols = append(cols, fmt.Sprintf("SELL BOX %s%%", num(m*100)))
	}
	for _, m := range margins {
		cols = append(cols, fmt.Sprintf("SELL BUNCH %s%%", num(m*100)))
	}
	return cols
}

func lineRow(n int, ln landed.LineResult) []string {
	row := []string{
		strconv.Itoa(n),
		ln.Finca, ln.Origin, ln.Product, string(ln.BoxType), strconv.Itoa(ln.Boxes),
		strconv.Itoa(ln.BunchPerBox), strconv.Itoa(ln.StemsPerBunch),
		num(ln.KgPerBox), num(ln.PricePerBunch),
		num(ln.InvoicePerBox), num(ln.InvoiceLine), num(ln.KgLine),
		num(ln.FreightAlloc), num(ln.DutyAlloc), num(ln.TruckingAlloc),
		num(ln.LandedLine),
		num(ln.CostPerBox), num(ln.CostPerBunch), num(ln.CostPerStem),
	}
	for _, q := range ln.Sell {
		row = append(row, num(q.PerBox))
	}
	for _, q := range ln.Sell {
		row = append(row, num(q.PerBunch))
	}
	return row
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
