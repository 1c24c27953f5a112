package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/dmdmdm-nz/netmond/pkg/version"
)

// Flags holds the command line options.
type Flags struct {
	ConfigPath string
	Host       string
	Port       int
	LogLevel   string
}

// ParseFlags parses command line arguments. Flags that were explicitly
// set override the corresponding config file values.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "", "Path to the yaml configuration file")
	flag.StringVar(&f.Host, "host", "", "Host to bind the API to (overrides config)")
	flag.IntVar(&f.Port, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version information")

	flag.Parse()

	if *showVersion {
		fmt.Printf("netmond version %s (commit: %s, built at: %s)\n",
			version.Version,
			version.CommitHash,
			version.BuildTime)
		os.Exit(0)
	}

	return f
}

// String returns a string representation of the parsed flags.
func (f *Flags) String() string {
	return fmt.Sprintf("Config: %s, Host: %s, Port: %d, LogLevel: %s", f.ConfigPath, f.Host, f.Port, f.LogLevel)
}
