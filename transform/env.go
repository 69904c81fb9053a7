package transform

import (
	"fmt"
	"os"
	"strings"

	"github.com/OpenPrinting/goipp"
)

// PrinterAttrs is the subset of printer attributes the transform
// environment needs, passed in directly rather than importing package
// printer, to keep transform free of a dependency on the printer/job
// packages (it is invoked by the job manager through a narrow
// interface, see Runner.Run).
type PrinterAttrs struct {
	DeviceURI                          string
	PWGRasterDocumentResolutionSupported string
	PWGRasterDocumentSheetBack         string
	PWGRasterDocumentTypeSupported     string
}

// BuildEnv constructs the child process environment exactly as
// ippeveprinter's transform.c does (see DESIGN.md for the
// line-by-line grounding): inherit the current environment, then
// append CONTENT_TYPE/DEVICE_URI/DOCUMENT_NAME/OUTPUT_TYPE/
// PWG_RASTER_DOCUMENT_* from the printer/job, then one IPP_<NAME> per
// job attribute.
func BuildEnv(contentType, outputType, documentName string, printer PrinterAttrs, jobAttrs goipp.Attributes) []string {
	env := os.Environ()

	env = append(env,
		"CONTENT_TYPE="+contentType,
		"DEVICE_URI="+printer.DeviceURI,
		"DOCUMENT_NAME="+documentName,
		"OUTPUT_TYPE="+outputType,
	)
	if printer.PWGRasterDocumentResolutionSupported != "" {
		env = append(env, "PWG_RASTER_DOCUMENT_RESOLUTION_SUPPORTED="+printer.PWGRasterDocumentResolutionSupported)
	}
	if printer.PWGRasterDocumentSheetBack != "" {
		env = append(env, "PWG_RASTER_DOCUMENT_SHEET_BACK="+printer.PWGRasterDocumentSheetBack)
	}
	if printer.PWGRasterDocumentTypeSupported != "" {
		env = append(env, "PWG_RASTER_DOCUMENT_TYPE_SUPPORTED="+printer.PWGRasterDocumentTypeSupported)
	}

	for _, attr := range jobAttrs {
		if len(attr.Values) == 0 {
			continue
		}
		env = append(env, fmt.Sprintf("IPP_%s=%s", ippEnvName(attr.Name), attr.Values.String()))
	}
	return env
}

// ippEnvName upper-cases an attribute name and replaces '-' with '_',
// matching transform.c's character-by-character construction of
// IPP_{NAME} environment variable names.
func ippEnvName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == '-' {
			b.WriteByte('_')
		} else {
			b.WriteRune(toUpperASCII(r))
		}
	}
	return b.String()
}

func toUpperASCII(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
