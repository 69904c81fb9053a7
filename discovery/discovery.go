// Package discovery advertises printers over mDNS/DNS-SD so clients
// can find them without being told an address up front. Grounded on
// ippsrv/mdns.go's newMDSN/zeroconf.Register, generalized from a
// single hard-coded _ipp._tcp registration per printer to a
// three-service-type model (printer, ipp, http), plus the full
// PWG 5100.15-style TXT key set.
package discovery

import (
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"
	"github.com/gopherprint/ippserver/printer"
)

// Info describes the capability facts a printer's TXT records need to
// advertise, handed in by the caller rather than re-derived from
// ipp.ServerConfig so this package stays free of a dependency on
// package ipp.
type Info struct {
	MakeAndModel string
	Formats      []string // document-format-supported, joined with commas
	Color        bool
	Duplex       bool
	USBMfg       string
	USBModel     string
	Host         string
	Port         int
	TLSPort      int // 0 if TLS is not offered
}

// Advertisement holds the three independent zeroconf registrations
// (printer, ipp, http) for one printer. Per 's open
// question ("Avahi shares one entry-group, DNS-SD uses three — pick
// one model and document"): this implementation registers three
// independent services because zeroconf.Register has no entry-group
// concept to share, matching the DNS-SD model rather than Avahi's.
type Advertisement struct {
	printerSvc *zeroconf.Server
	ippSvc     *zeroconf.Server
	httpSvc    *zeroconf.Server
}

// Shutdown unregisters all three services.
func (a *Advertisement) Shutdown() {
	if a == nil {
		return
	}
	for _, s := range []*zeroconf.Server{a.printerSvc, a.ippSvc, a.httpSvc} {
		if s != nil {
			s.Shutdown()
		}
	}
}

func yesno(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

// txtRecords builds the shared TXT key set used by both the
// _ipp._tcp and _http._tcp,_printer registrations: "rp, ty, adminurl,
// note, product, pdl, Color, Duplex, usb_MFG, usb_MDL, UUID, URF, TLS,
// txtvers=1, qtotal=1".
func txtRecords(p *printer.Printer, info Info) []string {
	pdl := ""
	for i, f := range info.Formats {
		if i > 0 {
			pdl += ","
		}
		pdl += f
	}
	recs := []string{
		"txtvers=1",
		"qtotal=1",
		"rp=" + p.Name,
		"ty=" + info.MakeAndModel,
		"product=(" + info.MakeAndModel + ")",
		"note=" + p.MakeAndModel,
		fmt.Sprintf("adminurl=http://%s:%d/", info.Host, info.Port),
		"pdl=" + pdl,
		"Color=" + yesno(info.Color),
		"Duplex=" + yesno(info.Duplex),
		"usb_MFG=" + info.USBMfg,
		"usb_MDL=" + info.USBModel,
		"UUID=" + p.UUID,
		"URF=none",
	}
	if info.TLSPort != 0 {
		recs = append(recs, "TLS=1.2")
	}
	return recs
}

// Advertise registers a printer's three service types and returns a
// handle the caller must Shutdown on printer removal or process exit.
// On a name collision zeroconf.Register itself fails outright (unlike
// Avahi's automatic rename-on-collision); the caller is expected to
// retry with a disambiguated name via printer.SetDNSSDName, mirroring
// the mutable dnssdName field the printer type already carries for
// exactly this purpose.
func Advertise(p *printer.Printer, info Info) (*Advertisement, error) {
	const domain = "local."
	name := p.DNSSDName()
	txt := txtRecords(p, info)

	printerSvc, err := zeroconf.Register(name, "_printer._tcp", domain, 0, []string{"txtvers=1"}, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register _printer._tcp: %w", err)
	}
	ippSvc, err := zeroconf.Register(name, "_ipp._tcp", domain, info.Port, txt, nil)
	if err != nil {
		printerSvc.Shutdown()
		return nil, fmt.Errorf("discovery: register _ipp._tcp: %w", err)
	}
	httpSvc, err := zeroconf.Register(name, "_http._tcp,_printer", domain, info.Port, txt, nil)
	if err != nil {
		printerSvc.Shutdown()
		ippSvc.Shutdown()
		return nil, fmt.Errorf("discovery: register _http._tcp,_printer: %w", err)
	}

	slog.Info("printer advertised", "printer", p.Name, "dnssd_name", name, "port", info.Port)
	return &Advertisement{printerSvc: printerSvc, ippSvc: ippSvc, httpSvc: httpSvc}, nil
}

// AdvertiseDevice registers a single _ipp._tcp service for a proxy
// output device ('s Infra model), distinct from a printer's
// three-service registration since a bare device has no admin page or
// HTTP status surface of its own.
func AdvertiseDevice(name, host string, port int, uuid string) (*zeroconf.Server, error) {
	txt := []string{
		"txtvers=1",
		"qtotal=1",
		"UUID=" + uuid,
		fmt.Sprintf("adminurl=http://%s:%d/", host, port),
	}
	svc, err := zeroconf.Register(name, "_ipp._tcp", "local.", port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register device %s: %w", name, err)
	}
	return svc, nil
}
