package ipp

import "github.com/OpenPrinting/goipp"

// attributeGroup names the well-known "all"/group keywords a client
// may pass in requested-attributes, per RFC 8011 §4.2.
type attributeGroup string

const (
	groupAll               attributeGroup = "all"
	groupJobTemplate       attributeGroup = "job-template"
	groupJobDescription    attributeGroup = "job-description"
	groupPrinterDescription attributeGroup = "printer-description"
	groupNone              attributeGroup = "none"
)

// membership is consulted by Filter when the client asked
// for a named group rather than "all" or an explicit attribute list.
// Callers building an attribute set populate it once via
// NewGroupedAttributes so filtering doesn't need per-attribute
// metadata threaded through every add call.
type membership map[string]attributeGroup

// GroupedAttributes pairs a built attribute set with the group each
// attribute belongs to, so Filter can answer "all",
// "job-template", "job-description" and "printer-description"
// without re-deriving the classification from attribute names.
type GroupedAttributes struct {
	Attrs   goipp.Attributes
	Members membership
}

func NewGroupedAttributes() *GroupedAttributes {
	return &GroupedAttributes{Members: make(membership)}
}

// Add appends one attribute under the given group classification.
func (g *GroupedAttributes) Add(group attributeGroup, name string, tag goipp.Tag, values ...goipp.Value) {
	a := adder(&g.Attrs)
	a(name, tag, values...)
	g.Members[name] = group
}

// Filter implements requested-attributes/E: "all"
// (or an absent requested-attributes) returns everything; "none"
// returns nothing; a recognized group keyword returns that group;
// otherwise each name in the list is matched individually.
func (g *GroupedAttributes) Filter(requested []string) goipp.Attributes {
	if len(requested) == 0 {
		return g.Attrs
	}
	want := make(map[string]bool, len(requested))
	allGroups := false
	noneRequested := false
	for _, r := range requested {
		switch attributeGroup(r) {
		case groupAll:
			allGroups = true
		case groupNone:
			noneRequested = true
		default:
			want[r] = true
		}
	}
	if noneRequested && len(want) == 0 && !allGroups {
		return nil
	}
	if allGroups {
		return g.Attrs
	}

	out := make(goipp.Attributes, 0, len(g.Attrs))
	for _, attr := range g.Attrs {
		if want[attr.Name] {
			out = append(out, attr)
			continue
		}
		if group, ok := g.Members[attr.Name]; ok && want[string(group)] {
			out = append(out, attr)
		}
	}
	return out
}
