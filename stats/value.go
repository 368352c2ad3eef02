package stats

import (
	"strconv"
)

// NotAvailable is how absent values are written out.
const NotAvailable = "N/A"

// Value is a metric that may be absent from a statistics dump. An absent value
// is different from a value that is present and zero.
type Value struct {
	Raw     string
	Num     float64
	Present bool
}

// Absent returns the value of a metric that was not found.
func Absent() Value {
	return Value{}
}

// ParseValue interprets raw as a number. Text that is not a number gives an
// absent value.
func ParseValue(raw string) Value {
	num, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Absent()
	}

	return Value{Raw: raw, Num: num, Present: true}
}

// FromFloat creates a present value from a computed number.
func FromFloat(num float64) Value {
	return Value{
		Raw:     strconv.FormatFloat(num, 'g', -1, 64),
		Num:     num,
		Present: true,
	}
}

// Render returns the text of the value, or sentinel if it is absent.
func (v Value) Render(sentinel string) string {
	if !v.Present {
		return sentinel
	}

	return v.Raw
}

// String renders absent values as N/A.
func (v Value) String() string {
	return v.Render(NotAvailable)
}
