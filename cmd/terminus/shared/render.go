package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/go-ports/terminus/internal/service"
	"github.com/go-ports/terminus/internal/ui"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ValidateFormat rejects unknown --format values.
func ValidateFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (want table, json or yaml)", format)
	}
}

// RenderListing writes l to out in the selected format. A notice is written
// to errOut so piped data stays clean.
func (c *Context) RenderListing(out, errOut io.Writer, l service.Listing) error {
	if l.Notice != "" {
		fmt.Fprintln(errOut, ui.Info.Sprint(l.Notice))
	}
	switch c.Format {
	case FormatJSON:
		return renderJSON(out, l.Records)
	case FormatYAML:
		return renderYAML(out, l.Records)
	default:
		if len(l.Records) == 0 {
			return nil
		}
		return renderTable(out, l.Records)
	}
}

// RenderList writes a list of scalars, one per line for tables.
func (c *Context) RenderList(out io.Writer, items []string) error {
	if items == nil {
		items = []string{}
	}
	switch c.Format {
	case FormatJSON:
		return renderJSON(out, items)
	case FormatYAML:
		b, err := yaml.Marshal(items)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	default:
		for _, it := range items {
			fmt.Fprintln(out, it)
		}
		return nil
	}
}

func renderJSON(out io.Writer, v any) error {
	if recs, ok := v.([]service.Record); ok && recs == nil {
		v = []service.Record{}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}

// renderYAML builds the document node by node so column order survives.
func renderYAML(out io.Writer, records []service.Record) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	if len(records) == 0 {
		seq.Style = yaml.FlowStyle
	}
	for _, r := range records {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for pair := r.Oldest(); pair != nil; pair = pair.Next() {
			val := &yaml.Node{}
			if err := val.Encode(pair.Value); err != nil {
				return err
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: pair.Key}, val)
		}
		seq.Content = append(seq.Content, m)
	}
	b, err := yaml.Marshal(seq)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

// renderTable aligns the records in columns. Columns are the union of record
// keys in order of first appearance.
func renderTable(out io.Writer, records []service.Record) error {
	var cols []string
	seen := make(map[string]bool)
	for _, r := range records {
		for pair := r.Oldest(); pair != nil; pair = pair.Next() {
			if !seen[pair.Key] {
				seen[pair.Key] = true
				cols = append(cols, pair.Key)
			}
		}
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	headers := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = strings.ToUpper(strings.ReplaceAll(col, "_", " "))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range records {
		cells := make([]string, len(cols))
		for i, col := range cols {
			v, _ := r.Get(col)
			cells[i] = cell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	// Colour is applied after alignment; escape codes would skew tabwriter's widths.
	header, rest, _ := strings.Cut(buf.String(), "\n")
	if _, err := fmt.Fprintln(out, ui.Header.Sprint(strings.TrimRight(header, " "))); err != nil {
		return err
	}
	_, err := io.WriteString(out, rest)
	return err
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(t, ", ")
	default:
		return fmt.Sprint(t)
	}
}
