package core

import (
	"pl-ner-backend/pkg/api"
	"strings"
)

// LabelToValues holds the values found in a document, keyed by upper case
// category or NER label.
type LabelToValues map[string][]string

func normalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

func NewLabelToValues(res api.AnalyzeResponse) LabelToValues {
	values := LabelToValues{}
	for _, e := range res.NerResults {
		label := normalizeLabel(e.EntityGroup)
		values[label] = append(values[label], e.Word)
	}
	for _, m := range res.Pesels {
		values["PESEL"] = append(values["PESEL"], m.Pesel)
	}
	for _, m := range res.Phones {
		values["PHONE"] = append(values["PHONE"], m.Phone)
	}
	for _, m := range res.Dates {
		values["DATE"] = append(values["DATE"], m.Date)
	}
	for _, m := range res.Times {
		values["TIME"] = append(values["TIME"], m.Time)
	}
	return values
}

func (l LabelToValues) Counts() map[string]uint64 {
	counts := make(map[string]uint64, len(l))
	for label, values := range l {
		counts[label] = uint64(len(values))
	}
	return counts
}

type Filter interface {
	Matches(values LabelToValues) bool
}

type AndFilter struct {
	filters []Filter
}

func (f *AndFilter) Matches(values LabelToValues) bool {
	for _, filter := range f.filters {
		if !filter.Matches(values) {
			return false
		}
	}
	return true
}

type OrFilter struct {
	filters []Filter
}

func (f *OrFilter) Matches(values LabelToValues) bool {
	for _, filter := range f.filters {
		if filter.Matches(values) {
			return true
		}
	}
	return false
}

type NotFilter struct {
	filter Filter
}

func (f *NotFilter) Matches(values LabelToValues) bool {
	return !f.filter.Matches(values)
}

// CountFilter matches when min < count < max.
type CountFilter struct {
	label string
	min   int
	max   int
}

func (f *CountFilter) Matches(values LabelToValues) bool {
	count := len(values[f.label])
	return f.min < count && count < f.max
}

// ValueFilter compares every value of a label against a string operand.
type ValueFilter struct {
	label string
	op    string
	value string
}

func (f *ValueFilter) matches(v string) bool {
	switch f.op {
	case "CONTAINS":
		return strings.Contains(strings.ToLower(v), strings.ToLower(f.value))
	case "STARTS":
		return strings.HasPrefix(v, f.value)
	case "<":
		return v < f.value
	case "<=":
		return v <= f.value
	case ">":
		return v > f.value
	case ">=":
		return v >= f.value
	case "=":
		return v == f.value
	case "!=":
		return v != f.value
	default:
		return false
	}
}

func (f *ValueFilter) Matches(values LabelToValues) bool {
	for _, v := range values[f.label] {
		if f.matches(v) {
			return true
		}
	}
	return false
}
