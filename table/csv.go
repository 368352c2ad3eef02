package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sarchlab/cachesweep/stats"
	"github.com/sarchlab/cachesweep/sweep"
)

// Configuration columns.
const (
	ColumnL1Size  = "L1_Size"
	ColumnL2Size  = "L2_Size"
	ColumnL1Assoc = "L1_Assoc"
	ColumnL2Assoc = "L2_Assoc"
	ColumnType    = "Type"
	ColumnStatus  = "Status"
)

// Header returns the CSV header. The Type column is only present when rows
// are labeled with variants.
func Header(withType bool) []string {
	header := []string{ColumnL1Size, ColumnL2Size, ColumnL1Assoc, ColumnL2Assoc}
	if withType {
		header = append(header, ColumnType)
	}

	header = append(header, ColumnStatus)

	return append(header, MetricNames()...)
}

// Record renders a row as CSV fields.
func Record(r Row, withType bool) []string {
	record := []string{
		r.Config.L1Size,
		r.Config.L2Size,
		strconv.Itoa(r.Config.L1Assoc),
		strconv.Itoa(r.Config.L2Assoc),
	}

	if withType {
		record = append(record, r.Config.Variant)
	}

	record = append(record, string(r.Status))

	for _, m := range metrics {
		record = append(record, m.value(r).Render(stats.NotAvailable))
	}

	return record
}

// WriteCSV writes the header and every row in table order.
func (t *Table) WriteCSV(w io.Writer) error {
	return WriteRows(w, t.Rows(), t.HasVariants())
}

// WriteRows writes the header and rows in the given order.
func WriteRows(w io.Writer, rows []Row, withType bool) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header(withType)); err != nil {
		return err
	}

	for _, r := range rows {
		if err := writer.Write(Record(r, withType)); err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}

// WriteCSVFile writes the table to path.
func (t *Table) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// ReadCSV loads a table written by WriteCSV. Tables without a Status column
// are accepted; their status is taken from the Time column, which holds
// "Failed" or "Error" for runs without statistics. N/A marks absent values.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}

	for _, required := range []string{
		ColumnL1Size, ColumnL2Size, ColumnL1Assoc, ColumnL2Assoc,
	} {
		if _, found := columns[required]; !found {
			return nil, fmt.Errorf("CSV has no %s column", required)
		}
	}

	t := New()

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := parseRecord(record, columns)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		t.Put(row)
	}

	return t, nil
}

// ReadCSVFile loads the table at path.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sweep.ErrMissingPrerequisite, err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ParseRecord turns fields labeled by header into a row, the same way ReadCSV
// reads one line.
func ParseRecord(header, record []string) (Row, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}

	return parseRecord(record, columns)
}

func parseRecord(record []string, columns map[string]int) (Row, error) {
	field := func(name string) string {
		i, found := columns[name]
		if !found || i >= len(record) {
			return ""
		}

		return record[i]
	}

	c := sweep.Config{
		L1Size:  field(ColumnL1Size),
		L2Size:  field(ColumnL2Size),
		Variant: field(ColumnType),
	}

	var err error
	if c.L1Assoc, err = strconv.Atoi(field(ColumnL1Assoc)); err != nil {
		return Row{}, fmt.Errorf("L1 associativity: %w", err)
	}

	if c.L2Assoc, err = strconv.Atoi(field(ColumnL2Assoc)); err != nil {
		return Row{}, fmt.Errorf("L2 associativity: %w", err)
	}

	if _, err := c.TotalCacheKB(); err != nil {
		return Row{}, err
	}

	row := Row{Config: c, Status: StatusOK, Metrics: stats.Stats{}}

	switch status := field(ColumnStatus); status {
	case string(StatusOK), "":
	case string(StatusFailed), string(StatusError):
		row.Status = Status(status)
	default:
		return Row{}, fmt.Errorf("unknown status %q", status)
	}

	for _, m := range metrics {
		if m.key == "" {
			continue
		}

		raw := field(m.name)
		if raw == "" || raw == stats.NotAvailable {
			row.Metrics[m.key] = stats.Absent()
			continue
		}

		row.Metrics[m.key] = stats.ParseValue(raw)
	}

	if _, hasStatus := columns[ColumnStatus]; !hasStatus {
		time := field(MetricTime)
		if time == string(StatusFailed) || time == string(StatusError) {
			row.Status = Status(time)
		}
	}

	return row, nil
}
