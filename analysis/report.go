package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/sarchlab/cachesweep/table"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func variantName(v string) string {
	if v == "" {
		return "-"
	}

	return v
}

// PrintRows writes a console table with the configuration and the given
// metrics of every row.
func PrintRows(w io.Writer, rows []table.Row, metrics []string) error {
	tw := newTabWriter(w)

	fmt.Fprint(tw, "Type\tL1\tL1 Assoc\tL2\tL2 Assoc\tStatus")
	for _, m := range metrics {
		fmt.Fprintf(tw, "\t%s", m)
	}
	fmt.Fprintln(tw)

	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s",
			variantName(r.Config.Variant),
			r.Config.L1Size, r.Config.L1Assoc,
			r.Config.L2Size, r.Config.L2Assoc,
			r.Status)

		for _, m := range metrics {
			fmt.Fprintf(tw, "\t%s", r.Metric(m))
		}
		fmt.Fprintln(tw)
	}

	return tw.Flush()
}

// PrintRankings writes one console table per ranking.
func PrintRankings(w io.Writer, title string, rankings []Ranking) error {
	for _, r := range rankings {
		fmt.Fprintf(w, "%s (%s)\n", title, variantName(r.Variant))

		if err := PrintRows(w, r.Rows, []string{r.Metric}); err != nil {
			return err
		}

		fmt.Fprintln(w)
	}

	return nil
}

// PrintSummaries writes summaries as a console table.
func PrintSummaries(w io.Writer, summaries []Summary) error {
	tw := newTabWriter(w)

	fmt.Fprintln(tw, "Type\tMetric\tCount\tMean\tMin\tMax")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.6g\t%.6g\t%.6g\n",
			variantName(s.Variant), s.Metric, s.Count, s.Mean, s.Min, s.Max)
	}

	return tw.Flush()
}

// WriteSummariesCSV writes summaries as CSV.
func WriteSummariesCSV(w io.Writer, summaries []Summary) error {
	writer := csv.NewWriter(w)

	err := writer.Write([]string{"Type", "Metric", "Count", "Mean", "Min", "Max"})
	if err != nil {
		return err
	}

	for _, s := range summaries {
		err := writer.Write([]string{
			s.Variant,
			s.Metric,
			strconv.Itoa(s.Count),
			strconv.FormatFloat(s.Mean, 'g', -1, 64),
			strconv.FormatFloat(s.Min, 'g', -1, 64),
			strconv.FormatFloat(s.Max, 'g', -1, 64),
		})
		if err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}
