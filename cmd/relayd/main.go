package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/connrelay/internal/logging"
	"github.com/danmuck/connrelay/internal/relay"
	"gopkg.in/alecthomas/kingpin.v2"
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Lends exclusive connection handles to callers over TCP.")

	var (
		configPath = app.Flag("config", "TOML config file.").Short('c').Envar("CONNRELAY_CONFIG").String()
		addr       = app.Flag("addr", "Listen address, overrides the config file.").Short('a').String()
		dialer     = app.Flag("dialer", "Connection dialer, overrides the config file.").Enum(relay.DialerLoopback, relay.DialerTCP)
	)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logging.ConfigureRuntime("relayd")

	cfg, err := buildConfig(*configPath, *addr, *dialer)
	if err != nil {
		app.Fatalf("%s", err)
	}
	if err := relay.NewServiceWithConfig(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "relayd: %v\n", err)
		os.Exit(1)
	}
}

// buildConfig layers the config file and flag overrides onto the defaults.
func buildConfig(configPath, addr, dialer string) (relay.ServiceConfig, error) {
	cfg := relay.DefaultServiceConfig()
	if path := strings.TrimSpace(configPath); path != "" {
		loaded, err := loadServiceConfig(path)
		if err != nil {
			return relay.ServiceConfig{}, err
		}
		cfg = loaded
	}
	if v := strings.TrimSpace(addr); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(dialer); v != "" {
		cfg.Dialer = v
	}
	return cfg, nil
}
