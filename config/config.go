// Package config defines the server's flag-populated configuration,
// using the same flat-struct-filled-by-flag.*Var idiom as a simple
// CLI tool's init(), rather than a third-party flags/config library
// — no such library appears anywhere in the retrieved pack, so
// stdlib flag is the grounded choice here.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// PrinterSpec describes one printer to register at startup. Only a
// single printer is configurable from flags; a config file format
// for multi-printer fleets is left as an open extension, not
// implemented here.
type PrinterSpec struct {
	Name         string
	MakeAndModel string
	IconPath     string
}

// Config is the full set of values the server needs at startup: its
// listener/spool/transform/discovery surface plus the one printer it
// registers.
type Config struct {
	ListenAddrs   []string
	TLSListenAddr string
	TLSCertFile   string
	TLSKeyFile    string

	BaseURI  string
	SpoolDir string

	TransformCmd string
	Retention    time.Duration

	DiscoveryEnabled bool

	Printer PrinterSpec

	Verbose bool
}

type addrList []string

func (a *addrList) String() string { return fmt.Sprint([]string(*a)) }
func (a *addrList) Set(v string) error {
	*a = append(*a, v)
	return nil
}

// Parse populates a Config from command-line flags, using the same
// flag.*Var style a single-shot CLI tool would use in init(), done
// here inside Parse since this server is invoked from a real main
// rather than a package-level init.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("ippserver", flag.ContinueOnError)

	var addrs addrList
	fs.Var(&addrs, "listen", "address to listen on (may be repeated), default :631")

	var cfg Config
	fs.StringVar(&cfg.TLSListenAddr, "tls-listen", "", "address to listen on for ipps:// (optional; stored in the config, but the server opens no TLS listener from it)")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key", "", "TLS key file")
	fs.StringVar(&cfg.BaseURI, "base-uri", "ipp://localhost:631/ipp", "base printer-uri prefix")
	fs.StringVar(&cfg.SpoolDir, "spool-dir", "/tmp/ippserver-spool", "directory for spooled documents")
	fs.StringVar(&cfg.TransformCmd, "transform-cmd", "ipptransform", "path to the transform tool")
	fs.DurationVar(&cfg.Retention, "retention", 60*time.Second, "how long completed jobs stay listed before reaping (stored in the config; the job manager reaps after its fixed 60s job.Retention)")
	fs.BoolVar(&cfg.DiscoveryEnabled, "mdns", true, "advertise the printer over mDNS/DNS-SD")
	fs.StringVar(&cfg.Printer.Name, "printer-name", "print/p1", "printer resource name")
	fs.StringVar(&cfg.Printer.MakeAndModel, "make-and-model", "GopherPrint Virtual Printer", "printer-make-and-model string")
	fs.StringVar(&cfg.Printer.IconPath, "icon", "", "path to a PNG icon served at /icon.png")
	fs.BoolVar(&cfg.Verbose, "v", os.Getenv("DEBUG") == "1", "enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if len(addrs) == 0 {
		addrs = addrList{":631"}
	}
	cfg.ListenAddrs = addrs
	return cfg, nil
}
