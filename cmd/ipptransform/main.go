// Command ipptransform is the external transform tool transform.Runner
// spawns per job: read the spool file named on argv,
// decode it, raster it to the requested OUTPUT_TYPE, and write the
// result to stdout while reporting progress on stderr via the
// STATE:/ATTR:/job-*-completed= protocol transform.Runner.pumpStderr
// parses. Grounded on the reference transform.c's own
// env-in/stdout-out/stderr-protocol contract (see DESIGN.md) and on a
// root main.go's image-decode idiom.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gopherprint/ippserver/decode"
	"github.com/gopherprint/ippserver/raster"
	"github.com/gopherprint/ippserver/raster/pcl"
	"github.com/gopherprint/ippserver/raster/pwg"
)

// mediaPoints maps a handful of common IPP media keywords to their
// point dimensions (1/72in), mirroring the table pcl.PageSizeCode uses
// for the PCL page-size command.
var mediaPoints = map[string][2]int{
	"na_letter_8.5x11in": {612, 792},
	"na_legal_8.5x14in":  {612, 1008},
	"iso_a4_210x297mm":   {595, 842},
	"iso_a5_148x210mm":   {420, 595},
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("ipptransform: missing spool file argument")
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "STATE: +document-format-error\n")
		log.Fatal(err)
	}
}

func run(spoolFile string) error {
	stderr := bufio.NewWriter(os.Stderr)
	defer stderr.Flush()

	contentType := os.Getenv("CONTENT_TYPE")
	outputType := os.Getenv("OUTPUT_TYPE")

	f, err := os.Open(spoolFile)
	if err != nil {
		return fmt.Errorf("ipptransform: open spool file: %w", err)
	}
	defer f.Close()

	src, err := documentSource(contentType, f)
	if err != nil {
		return err
	}

	opts := optionsFromEnv(outputType)

	var backend raster.Backend
	switch outputType {
	case "application/vnd.hp-pcl":
		backend = pcl.NewBackend(os.Stdout, pcl.Options{
			MediaWidthPoints:  opts.MediaWidthPoints,
			MediaHeightPoints: opts.MediaHeightPoints,
			Duplex:            opts.Sides,
			Tumble:            opts.Tumble,
		})
	default:
		backend = pwg.NewBackend(os.Stdout)
	}

	fmt.Fprintln(stderr, "STATE: +job-transforming")
	stderr.Flush()

	engine := raster.NewEngine()
	if err := engine.Transform(src, backend, opts); err != nil {
		return fmt.Errorf("ipptransform: %w", err)
	}

	fmt.Fprintln(stderr, "STATE: -job-transforming")
	fmt.Fprintf(stderr, "job-impressions-completed=%d\n", opts.Copies)
	stderr.Flush()
	return nil
}

func documentSource(contentType string, r io.Reader) (raster.PageSource, error) {
	switch contentType {
	case "image/jpeg", "image/png":
		return decode.NewJPEGSource(r), nil
	case "application/pdf":
		return decode.NewPDFSource(r)
	default:
		return nil, fmt.Errorf("ipptransform: unsupported CONTENT_TYPE %q", contentType)
	}
}

// optionsFromEnv builds raster.Options from the environment
// transform.BuildEnv populates: the PWG_RASTER_DOCUMENT_* triple
// describing what the printer supports, plus the IPP_<NAME> job
// attribute mirrors for what this particular job requested.
func optionsFromEnv(outputType string) raster.Options {
	opts := raster.Options{
		DestinationFormat: outputType,
		Sides:             envOr("IPP_SIDES", "one-sided"),
		PrinterResolution: envOr("IPP_PRINTER_RESOLUTION", ""),
		Copies:            envInt("IPP_COPIES", 1),
		Color:             envOr("IPP_PRINT_COLOR_MODE", "monochrome") == "color",
	}
	opts.SheetBack = raster.ParseSheetBack(os.Getenv("PWG_RASTER_DOCUMENT_SHEET_BACK"))
	opts.SupportedResolutions = parseResolutions(os.Getenv("PWG_RASTER_DOCUMENT_RESOLUTION_SUPPORTED"))
	if t := os.Getenv("PWG_RASTER_DOCUMENT_TYPE_SUPPORTED"); t != "" {
		opts.SupportedTypes = strings.Split(t, ",")
	}
	if dims, ok := mediaPoints[mediaFromEnv()]; ok {
		opts.MediaWidthPoints, opts.MediaHeightPoints = dims[0], dims[1]
	}
	return opts
}

func mediaFromEnv() string {
	return envOr("IPP_MEDIA", "na_letter_8.5x11in")
}

func parseResolutions(s string) []raster.Resolution {
	if s == "" {
		return nil
	}
	var out []raster.Resolution
	for _, part := range strings.Split(s, ",") {
		res, err := raster.ParseResolution(part)
		if err != nil {
			continue
		}
		out = append(out, res)
	}
	return out
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
