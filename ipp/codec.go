// Package ipp implements the IPP attribute codec helpers and the
// operation dispatcher. Grounded on ippsrv/ipp_utils.go's
// adder/findAttr/extractValue/baseResponse helpers, generalized to
// the full response/status vocabulary an IPP server needs, and fixed
// to write attributes back into the message group field: a naive
// adder closing over a copy of the Attributes slice header never
// re-assigns it to the owning struct field, so its accumulated
// attributes are silently dropped; this version takes a pointer to
// the field instead.
package ipp

import (
	"fmt"

	"github.com/OpenPrinting/goipp"
)

const (
	ippNone goipp.String = "none"
	ippUTF8 goipp.String = "utf-8"
	ippENUS goipp.String = "en-us"
)

// adder returns a closure that appends one attribute at a time to the
// attribute group pointed to by op, matching ippsrv/ipp_utils.go's
// adder shape but taking a pointer so appends are visible to the
// caller.
func adder(op *goipp.Attributes) func(name string, tag goipp.Tag, values ...goipp.Value) {
	return func(name string, tag goipp.Tag, values ...goipp.Value) {
		if len(values) == 0 {
			values = []goipp.Value{goipp.String("")}
		}
		attr := goipp.MakeAttribute(name, tag, values[0])
		for _, v := range values[1:] {
			attr.Values.Add(tag, v)
		}
		op.Add(attr)
	}
}

// stringsToValues converts a string slice to goipp.Value, for
// multi-valued keyword/string attributes like media-supported.
func stringsToValues[S ~[]E, E ~string](strs S) []goipp.Value {
	values := make([]goipp.Value, len(strs))
	for i, s := range strs {
		values[i] = goipp.String(s)
	}
	return values
}

// findAttr looks an attribute up by name within a group.
func findAttr(attrs goipp.Attributes, name string) (goipp.Values, bool) {
	for _, attr := range attrs {
		if attr.Name == name && len(attr.Values) > 0 {
			return attr.Values, true
		}
	}
	return nil, false
}

// extractValue pulls a single typed value for a named attribute, per
// ippsrv/ipp_utils.go's generic extractValue.
func extractValue[T any](attrs goipp.Attributes, name string) (T, error) {
	var zero T
	vv, ok := findAttr(attrs, name)
	if !ok {
		return zero, fmt.Errorf("attribute %q not found", name)
	}
	if len(vv) > 1 {
		return zero, fmt.Errorf("attribute %q has multiple values", name)
	}
	if val, ok := vv[0].V.(T); ok {
		return val, nil
	}
	return zero, fmt.Errorf("attribute %q is not of expected type: %T", name, vv[0].V)
}

// extractStrings pulls every value of a named 1setOf attribute as
// strings, used for requested-attributes and similar keyword lists.
func extractStrings(attrs goipp.Attributes, name string) []string {
	vv, ok := findAttr(attrs, name)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(vv))
	for _, v := range vv {
		out = append(out, v.V.String())
	}
	return out
}

// newResponse builds a response message with the mandatory
// attributes-charset/attributes-natural-language operation
// attributes every IPP response carries, per RFC 8011 §4.1.6.1.
func newResponse(requestID uint32, status goipp.Status) *goipp.Message {
	m := &goipp.Message{
		Version:   goipp.DefaultVersion,
		Code:      goipp.Code(status),
		RequestID: requestID,
	}
	a := adder(&m.Operation)
	a("attributes-charset", goipp.TagCharset, ippUTF8)
	a("attributes-natural-language", goipp.TagLanguage, ippENUS)
	return m
}

// errorResponse builds a minimal error response carrying a
// status-message "Error Handling Design".
func errorResponse(requestID uint32, status goipp.Status, message string) *goipp.Message {
	m := newResponse(requestID, status)
	if message != "" {
		a := adder(&m.Operation)
		a("status-message", goipp.TagText, goipp.String(message))
	}
	return m
}
