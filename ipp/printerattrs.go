package ipp

import (
	"github.com/OpenPrinting/goipp"
	"github.com/gopherprint/ippserver/printer"
)

// ServerConfig carries the static capability declarations a printer
// advertises, populated from the config package at startup.
type ServerConfig struct {
	DocumentFormats       []string
	MediaSupported        []string
	MediaDefault          string
	ResolutionsSupported  []string
	ColorSupported        bool
	SidesSupported        []string
	PDLOverride           string
}

// BuildPrinterAttributes assembles the full Get-Printer-Attributes
// payload, generalized from ippsrv/ipp.go's printerAttributes (which
// built a hard-coded thermal-label attribute set) to the full
// printer-description/job-template group pair a full server needs.
// Grouped so Filter can answer "all", "printer-description"
// and "job-template" group requests.
func BuildPrinterAttributes(p *printer.Printer, baseURI string, cfg ServerConfig) *GroupedAttributes {
	g := NewGroupedAttributes()
	p.RLock()
	defer p.RUnlock()

	const D = groupPrinterDescription
	g.Add(D, "printer-uri-supported", goipp.TagURI, goipp.String(p.URI))
	g.Add(D, "uri-authentication-supported", goipp.TagKeyword, ippNone)
	g.Add(D, "uri-security-supported", goipp.TagKeyword, ippNone)
	g.Add(D, "printer-name", goipp.TagName, goipp.String(p.Name))
	g.Add(D, "printer-info", goipp.TagText, goipp.String(p.MakeAndModel))
	g.Add(D, "printer-make-and-model", goipp.TagText, goipp.String(p.MakeAndModel))
	g.Add(D, "printer-state", goipp.TagEnum, goipp.Integer(p.State()))
	g.Add(D, "printer-state-reasons", goipp.TagKeyword, stringsToValues(p.Reasons().Strings())...)
	g.Add(D, "printer-is-accepting-jobs", goipp.TagBoolean, goipp.Boolean(p.State() != printer.StateStopped))
	g.Add(D, "printer-up-time", goipp.TagInteger, goipp.Integer(p.UpTime()))
	g.Add(D, "printer-uuid", goipp.TagURI, goipp.String("urn:uuid:"+p.UUID))
	g.Add(D, "ipp-versions-supported", goipp.TagKeyword, goipp.String("1.1"), goipp.String("2.0"))
	g.Add(D, "operations-supported", goipp.TagEnum, supportedOperations()...)
	g.Add(D, "multiple-document-jobs-supported", goipp.TagBoolean, goipp.Boolean(false))
	g.Add(D, "charset-configured", goipp.TagCharset, ippUTF8)
	g.Add(D, "charset-supported", goipp.TagCharset, ippUTF8)
	g.Add(D, "natural-language-configured", goipp.TagLanguage, ippENUS)
	g.Add(D, "generated-natural-language-supported", goipp.TagLanguage, ippENUS)
	g.Add(D, "compression-supported", goipp.TagKeyword, ippNone)
	g.Add(D, "pdl-override-supported", goipp.TagKeyword, goipp.String(orDefault(cfg.PDLOverride, "not-attempted")))
	g.Add(D, "queued-job-count", goipp.TagInteger, goipp.Integer(len(p.ActiveJobs())))

	formats := cfg.DocumentFormats
	if len(formats) == 0 {
		formats = []string{"application/pdf", "image/jpeg", "image/pwg-raster"}
	}
	g.Add(D, "document-format-supported", goipp.TagMimeType, stringsToValues(formats)...)
	g.Add(D, "document-format-default", goipp.TagMimeType, goipp.String(formats[0]))

	const T = groupJobTemplate
	media := cfg.MediaSupported
	if len(media) == 0 {
		media = []string{"na_letter_8.5x11in"}
	}
	g.Add(T, "media-supported", goipp.TagKeyword, stringsToValues(media)...)
	mediaDefault := cfg.MediaDefault
	if mediaDefault == "" {
		mediaDefault = media[0]
	}
	g.Add(T, "media-default", goipp.TagKeyword, goipp.String(mediaDefault))

	res := cfg.ResolutionsSupported
	if len(res) == 0 {
		res = []string{"300x300dpi"}
	}
	g.Add(T, "pwg-raster-document-resolution-supported", goipp.TagKeyword, stringsToValues(res)...)

	sides := cfg.SidesSupported
	if len(sides) == 0 {
		sides = []string{"one-sided"}
	}
	g.Add(T, "sides-supported", goipp.TagKeyword, stringsToValues(sides)...)
	g.Add(T, "sides-default", goipp.TagKeyword, goipp.String(sides[0]))

	g.Add(T, "print-color-mode-supported", goipp.TagKeyword, colorModeValues(cfg.ColorSupported)...)
	g.Add(T, "copies-supported", goipp.TagRange, goipp.Range{Lower: 1, Upper: 9999})
	g.Add(T, "copies-default", goipp.TagInteger, goipp.Integer(1))
	g.Add(T, "job-priority-supported", goipp.TagInteger, goipp.Integer(100))
	g.Add(T, "job-priority-default", goipp.TagInteger, goipp.Integer(50))
	g.Add(T, "print-quality-supported", goipp.TagEnum, goipp.Integer(3), goipp.Integer(4), goipp.Integer(5))
	g.Add(T, "print-quality-default", goipp.TagEnum, goipp.Integer(4))

	if dev := p.Device(); dev != nil {
		g.Add(D, "output-device-uuid", goipp.TagURI, goipp.String(dev.UUID))
	}

	return g
}

func colorModeValues(color bool) []goipp.Value {
	if color {
		return []goipp.Value{goipp.String("color"), goipp.String("monochrome")}
	}
	return []goipp.Value{goipp.String("monochrome")}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// supportedOperations lists the operations-supported enum, the full
// set of operations this server's handler table registers.
func supportedOperations() []goipp.Value {
	ops := []goipp.Op{
		goipp.OpPrintJob, goipp.OpPrintUri, goipp.OpValidateJob,
		goipp.OpCreateJob, goipp.OpSendDocument, goipp.OpSendUri,
		goipp.OpCancelJob, goipp.OpGetJobAttributes, goipp.OpGetJobs,
		goipp.OpGetPrinterAttributes, goipp.OpGetPrinterSupportedValues,
		goipp.OpCreatePrinterSubscriptions, goipp.OpCreateJobSubscriptions,
		goipp.OpGetSubscriptionAttributes, goipp.OpGetSubscriptions,
		goipp.OpRenewSubscription, goipp.OpCancelSubscription,
		goipp.OpGetNotifications, goipp.OpGetDocuments, goipp.OpCancelMyJobs,
		goipp.OpCloseJob, goipp.OpIdentifyPrinter, goipp.OpValidateDocument,
		goipp.OpFetchDocument, goipp.OpFetchJob, goipp.OpUpdateActiveJobs,
		goipp.OpDeregisterOutputDevice, goipp.OpUpdateJobStatus,
		goipp.OpUpdateDocumentStatus, goipp.OpGetOutputDeviceAttributes,
		goipp.OpAcknowledgeJob, goipp.OpAcknowledgeDocument,
		goipp.OpAcknowledgeIdentifyPrinter, goipp.OpupdateOutputDeviceAttributes,
	}
	out := make([]goipp.Value, len(ops))
	for i, op := range ops {
		out[i] = goipp.Integer(op)
	}
	return out
}
