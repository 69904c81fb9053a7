// Package ippserver wires components A through K into a single
// running server: the listener set, the printer registry and job
// manager, the IPP operation dispatcher, the transform runner, and the
// optional discovery/admin surfaces. Grounded on ippsrv.Server's own
// top-level shape (one struct holding the HTTP server, the IPP server,
// and the printer list), generalized to this spec's full component
// set and built as an explicit struct rather than package-level
// globals "no global state" instruction.
package ippserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gopherprint/ippserver/admin"
	"github.com/gopherprint/ippserver/config"
	"github.com/gopherprint/ippserver/discovery"
	"github.com/gopherprint/ippserver/ipp"
	"github.com/gopherprint/ippserver/job"
	"github.com/gopherprint/ippserver/printer"
	"github.com/gopherprint/ippserver/transform"
	"github.com/gopherprint/ippserver/transport"
)

// ippPath is the mux prefix IPP requests arrive under; ipp.Server
// resolves the target printer from the printer-uri attribute inside
// the request body, not from the HTTP path, so a single catch-all
// prefix is enough to front every registered printer.
const ippPath = "/ipp/"

// Server is the process-wide wiring point: one printer registry, one
// job manager, one IPP dispatcher, one transform runner, one HTTP
// front door, and an optional discovery advertisement per printer.
type Server struct {
	Config config.Config

	Registry  *printer.Registry
	Jobs      *job.Manager
	IPP       *ipp.Server
	Transform *transform.Runner
	HTTP      *transport.Server

	ads []*discovery.Advertisement
}

// New constructs a fully wired Server from cfg. It registers the
// single configured printer (see config.PrinterSpec), builds the job
// manager with its ProcessFunc bound to the transform runner, and
// builds the HTTP front door (IPP dispatcher + admin status page).
// Listening and advertising happen in Start, so New never touches the
// network.
func New(cfg config.Config) (*Server, error) {
	registry := printer.NewRegistry()

	p := printer.New(cfg.Printer.Name, cfg.BaseURI, cfg.Printer.MakeAndModel)
	p.SpoolDir = cfg.SpoolDir
	p.IconPath = cfg.Printer.IconPath
	p.TransformCmd = cfg.TransformCmd
	if err := registry.Add(p); err != nil {
		return nil, fmt.Errorf("ippserver: %w", err)
	}

	s := &Server{
		Config:    cfg,
		Registry:  registry,
		Transform: transform.NewRunner(),
	}
	s.Jobs = job.NewManager(registry, s.processJob)

	ippCfg := ipp.ServerConfig{
		DocumentFormats: []string{"application/pdf", "image/jpeg", "image/pwg-raster"},
		MediaSupported:  []string{"na_letter_8.5x11in", "iso_a4_210x297mm"},
		MediaDefault:    "na_letter_8.5x11in",
		ResolutionsSupported: []string{"300x300dpi", "600x600dpi"},
		ColorSupported:  true,
		SidesSupported:  []string{"one-sided", "two-sided-long-edge"},
	}
	s.IPP = ipp.NewServer(cfg.BaseURI, cfg.SpoolDir, ippCfg, registry, s.Jobs)

	adminHandler := &admin.Handler{Registry: registry, Jobs: s.Jobs, IconPath: cfg.Printer.IconPath}
	s.HTTP = transport.NewServer(ippPath, s.IPP.ServeIPP, func(mux *http.ServeMux) {
		adminHandler.Register(mux)
	})

	return s, nil
}

// Start binds every configured listen address and, if enabled,
// advertises the printer over mDNS/DNS-SD. It does not block; call Run
// (or HTTP.Serve) to actually accept connections.
func (s *Server) Start(ctx context.Context) error {
	for _, addr := range s.Config.ListenAddrs {
		if err := s.HTTP.Listen(addr); err != nil {
			return err
		}
	}

	if s.Config.DiscoveryEnabled {
		for _, p := range s.Registry.All() {
			info := discovery.Info{
				MakeAndModel: p.MakeAndModel,
				Formats:      []string{"application/pdf", "image/jpeg", "image/pwg-raster"},
				Color:        true,
				Duplex:       true,
				Host:         "localhost",
				Port:         631,
			}
			ad, err := discovery.Advertise(p, info)
			if err != nil {
				slog.Error("failed to advertise printer", "printer", p.Name, "error", err)
				continue
			}
			s.ads = append(s.ads, ad)
		}
	}
	return nil
}

// Run blocks serving HTTP until ctx is cancelled, then shuts every
// component down in turn, joining any errors, matching ippsrv.Server's
// own Shutdown pattern of errors.Join-ing its sub-shutdowns.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	serveErr := s.HTTP.Serve(ctx)

	var errs error
	if serveErr != nil {
		errs = errors.Join(errs, serveErr)
	}
	for _, ad := range s.ads {
		ad.Shutdown()
	}
	if err := s.Jobs.Close(); err != nil {
		errs = errors.Join(errs, err)
	}
	return errs
}

// processJob is job.ProcessFunc: it spawns the transform tool against
// the job's spool file and drives its stderr STATE:/ATTR: protocol
// back into the owning printer/job
func (s *Server) processJob(ctx context.Context, j *job.Job) error {
	p, ok := j.Printer.(*printer.Printer)
	if !ok {
		return fmt.Errorf("ippserver: job %d has no concrete printer", j.ID())
	}
	outPath := j.SpoolFilename + ".out"

	req := transform.Request{
		Command:      p.TransformCmd,
		SpoolFile:    j.SpoolFilename,
		ContentType:  j.Format,
		OutputType:   "image/pwg-raster",
		DocumentName: j.Name,
		Printer: transform.PrinterAttrs{
			DeviceURI: "file://" + outPath,
			PWGRasterDocumentResolutionSupported: "300x300dpi,600x600dpi",
			PWGRasterDocumentSheetBack:           "rotated",
			PWGRasterDocumentTypeSupported:       "srgb_8,sgray_8",
		},
		JobAttrs: j.Attributes(),
		Mode:     transform.ModeToFile,
		ToFile:   outPath,
		OnState: func(message string) {
			p.Lock()
			p.ApplyStateMessage(message)
			p.Unlock()
		},
		OnAttr: func(name, value string) { slog.Debug("transform attr", "job_id", j.ID(), "name", name, "value", value) },
		OnCounter: func(name string, value int) {
			if name == "job-impressions-completed" {
				j.Impressions = value
			}
		},
	}

	status, err := s.Transform.Run(ctx, req)
	if err != nil {
		return err
	}
	if status != 0 {
		return fmt.Errorf("transform command exited with status %d", status)
	}
	return nil
}
