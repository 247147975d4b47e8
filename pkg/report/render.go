// pkg/report/render.go
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/model"
	"github.com/David-Botos/survey-etl/pkg/profile"
)

// RenderProfile writes the exploratory summary as plain text
func RenderProfile(w io.Writer, p *profile.Profile) error {
	var sb strings.Builder
	sb.WriteString("SURVEY PROFILE\n")
	sb.WriteString("==============\n")
	fmt.Fprintf(&sb, "Source:  %s\n", p.Source)
	fmt.Fprintf(&sb, "Rows:    %d\n", p.Rows)
	fmt.Fprintf(&sb, "Columns: %d (%d text, %d numeric)\n",
		p.Columns, p.KindCounts[model.KindText], p.KindCounts[model.KindNumeric])

	section(&sb, "MISSING VALUES")
	fmt.Fprintf(&sb, "Missing cells:        %d\n", p.MissingTotal)
	fmt.Fprintf(&sb, "Columns with missing: %d\n", p.ColumnsWithMissing)
	fmt.Fprintf(&sb, "Mean missing:         %s\n", formatPercent(p.MeanMissingPercent))
	if len(p.TopMissing) > 0 {
		t := newTextTable("Column", "Missing", "Percent")
		for _, m := range p.TopMissing {
			t.add(m.Name, strconv.Itoa(m.Count), formatPercent(m.Percent))
		}
		t.render(&sb, "  ")
	}

	section(&sb, "DUPLICATES")
	fmt.Fprintf(&sb, "Duplicate rows: %d (%s)\n", p.Duplicates, formatPercent(p.DuplicatePercent))

	section(&sb, "UNIQUE VALUES")
	fmt.Fprintf(&sb, "Most distinct:  %s (%d)\n", p.MostUnique.Name, p.MostUnique.Count)
	fmt.Fprintf(&sb, "Least distinct: %s (%d)\n", p.LeastUnique.Name, p.LeastUnique.Count)

	section(&sb, "NUMERIC COLUMNS")
	if len(p.Numeric) == 0 {
		sb.WriteString("  none\n")
	} else {
		t := newTextTable("Column", "Count", "Mean", "Std", "Min", "Median", "Max")
		for _, n := range p.Numeric {
			t.add(n.Name, strconv.Itoa(n.Count), formatFloat(n.Mean), formatFloat(n.StdDev),
				formatFloat(n.Min), formatFloat(n.Median), formatFloat(n.Max))
		}
		t.render(&sb, "  ")
	}

	if len(p.KeyColumns) > 0 || len(p.Missing) > 0 {
		section(&sb, "KEY COLUMNS")
		for _, k := range p.KeyColumns {
			title := k.Name
			if k.Label != k.Name {
				title = fmt.Sprintf("%s (%s)", k.Name, k.Label)
			}
			sb.WriteString(title + "\n")
			t := newTextTable("Value", "Count", "Percent")
			for _, v := range k.Values {
				t.add(v.Value, strconv.Itoa(v.Count), formatPercent(v.Percent))
			}
			t.render(&sb, "  ")
		}
		for _, name := range p.Missing {
			fmt.Fprintf(&sb, "%s: not present\n", name)
		}
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// RenderRules writes the effective transform rules so they can be replayed by hand
func RenderRules(w io.Writer, tc config.TransformConfig) error {
	var sb strings.Builder
	sb.WriteString("TRANSFORM RULES\n")
	sb.WriteString("===============\n")
	fmt.Fprintf(&sb, "Missing threshold: %s (columns above it are dropped)\n", formatPercent(tc.MissingThreshold*100))
	fmt.Fprintf(&sb, "Text sentinel:     %q\n", tc.TextSentinel)
	fmt.Fprintf(&sb, "Numeric fallback:  %s\n", formatFloat(tc.NumericFallback))

	section(&sb, "NUMERIC COLUMNS")
	writeList(&sb, tc.NumericColumns)

	section(&sb, "LOWERCASED COLUMNS")
	writeList(&sb, tc.LowercaseColumns)

	section(&sb, "RENAME")
	if len(tc.Rename) == 0 {
		sb.WriteString("  none\n")
	} else {
		t := newTextTable("Original", "Renamed")
		for _, r := range tc.Rename {
			t.add(r.From, r.To)
		}
		t.render(&sb, "  ")
	}

	section(&sb, "DERIVED COLUMNS")
	if len(tc.Buckets) == 0 {
		sb.WriteString("  none\n")
	}
	for i, b := range tc.Buckets {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s (from %s)\n", b.Name, b.Source)
		t := newTextTable("Label", "Source values")
		for _, rule := range b.Rules {
			t.add(rule.Label, strings.Join(rule.Values, ", "))
		}
		t.add(b.Fallback, "anything else")
		t.render(&sb, "  ")
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write rules: %w", err)
	}
	return nil
}

func writeList(sb *strings.Builder, items []string) {
	if len(items) == 0 {
		sb.WriteString("  none\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(sb, "  - %s\n", item)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
