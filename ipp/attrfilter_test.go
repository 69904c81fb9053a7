package ipp

import (
	"testing"

	"github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/assert"
)

func buildTestGroupedAttributes() *GroupedAttributes {
	g := NewGroupedAttributes()
	g.Add(groupPrinterDescription, "printer-name", goipp.TagName, goipp.String("p1"))
	g.Add(groupPrinterDescription, "printer-state", goipp.TagEnum, goipp.Integer(3))
	g.Add(groupJobTemplate, "copies-default", goipp.TagInteger, goipp.Integer(1))
	return g
}

func names(attrs goipp.Attributes) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Name
	}
	return out
}

func TestGroupedAttributes_Filter(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		want      []string
	}{
		{"nil means everything", nil, []string{"printer-name", "printer-state", "copies-default"}},
		{"all means everything", []string{"all"}, []string{"printer-name", "printer-state", "copies-default"}},
		{"none means nothing", []string{"none"}, nil},
		{"explicit single attribute", []string{"printer-name"}, []string{"printer-name"}},
		{"group keyword selects its members", []string{"printer-description"}, []string{"printer-name", "printer-state"}},
		{"job-template group selects only its members", []string{"job-template"}, []string{"copies-default"}},
		{"unknown attribute name yields nothing", []string{"no-such-attribute"}, nil},
		{"mixing a group and an explicit name from another group", []string{"job-template", "printer-name"}, []string{"printer-name", "copies-default"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildTestGroupedAttributes()
			got := names(g.Filter(tt.requested))
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}
