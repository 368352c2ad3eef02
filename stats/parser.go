// Package stats scrapes named metrics out of the statistics dump the simulator
// writes after every run.
package stats

import (
	"fmt"
	"io"
	"os"
	"regexp"
)

// Keys of the built-in fields.
const (
	KeySimSeconds  = "sim_seconds"
	KeySimTicks    = "sim_ticks"
	KeyHostSeconds = "host_seconds"
	KeyIPC         = "ipc"
	KeyL1DMissRate = "l1d_miss_rate"
	KeyL2MissRate  = "l2_miss_rate"
	KeyL1DHits     = "l1d_hits"
	KeyL1DMisses   = "l1d_misses"
)

// A Field names a metric and the regular expression that matches its name in
// the dump. The pattern must not contain capturing groups.
type Field struct {
	Key     string
	Pattern string
}

// DefaultFields returns the metrics every sweep extracts. Cache names differ
// between configuration scripts, so the miss rates accept both spellings.
func DefaultFields() []Field {
	return []Field{
		{Key: KeySimSeconds, Pattern: `simSeconds`},
		{Key: KeySimTicks, Pattern: `simTicks`},
		{Key: KeyHostSeconds, Pattern: `hostSeconds`},
		{Key: KeyIPC, Pattern: `system\.cpu\.ipc`},
		{
			Key:     KeyL1DMissRate,
			Pattern: `system\.(?:cpu\.dcache|l1d)\.overallMissRate::total`,
		},
		{
			Key:     KeyL2MissRate,
			Pattern: `system\.(?:l2cache|l2)\.overallMissRate::total`,
		},
		{Key: KeyL1DHits, Pattern: `system\.cpu\.dcache\.overallHits::total`},
		{Key: KeyL1DMisses, Pattern: `system\.cpu\.dcache\.overallMisses::total`},
	}
}

const numberPattern = `([-+]?[0-9.]+(?:[eE][-+]?[0-9]+)?)`

type compiledField struct {
	Field
	re *regexp.Regexp
}

// Parser extracts a fixed set of fields from statistics dumps. A Parser is
// immutable and safe for concurrent use.
type Parser struct {
	fields []compiledField
}

// NewParser creates a parser for the default fields.
func NewParser() Parser {
	p := Parser{}

	for _, f := range DefaultFields() {
		p = p.WithField(f)
	}

	return p
}

// WithField returns a parser that also extracts f. A field with an existing
// key replaces the old one. It panics if the pattern does not compile.
func (p Parser) WithField(f Field) Parser {
	cf := compiledField{
		Field: f,
		re:    regexp.MustCompile(`(?m)^\s*` + f.Pattern + `\s+` + numberPattern),
	}

	fields := make([]compiledField, 0, len(p.fields)+1)
	for _, existing := range p.fields {
		if existing.Key != f.Key {
			fields = append(fields, existing)
		}
	}

	return Parser{fields: append(fields, cf)}
}

// Fields lists the fields the parser extracts.
func (p Parser) Fields() []Field {
	fields := make([]Field, len(p.fields))
	for i, f := range p.fields {
		fields[i] = f.Field
	}

	return fields
}

// ParseText extracts every field from a dump. Dumps may hold several blocks
// of statistics; the first occurrence of a metric wins. Fields that do not
// appear are absent.
func (p Parser) ParseText(text string) Stats {
	s := make(Stats, len(p.fields))

	for _, f := range p.fields {
		m := f.re.FindStringSubmatch(text)
		if m == nil {
			s[f.Key] = Absent()
			continue
		}

		s[f.Key] = ParseValue(m[1])
	}

	return s
}

// Parse reads a whole dump from r.
func (p Parser) Parse(r io.Reader) (Stats, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading statistics: %w", err)
	}

	return p.ParseText(string(content)), nil
}

// ParseFile parses the dump at path.
func (p Parser) ParseFile(path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return p.Parse(f)
}
