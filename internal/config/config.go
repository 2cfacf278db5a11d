// Package config loads the channel core's runtime configuration,
// following the same pre-parse/ini-file/parse-again sequence as the
// teacher's top-level config.go, scaled down to this module's surface.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/btcsuite/btcd/wire"
)

const (
	defaultConfigFilename = "bitprimd.conf"
	defaultListenPort     = 8333
	defaultProtocolMax    = uint32(70016)
	defaultProtocolMin    = uint32(31800)
	defaultConnectTimeout = 5 * time.Second

	version = "0.1.0"
)

// Config defines the configuration options for the wire channel core.
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`

	Network string `long:"network" description:"Network to connect to {mainnet, testnet3, simnet, regtest}"`

	ListenPort uint16 `long:"listenport" description:"Port to accept inbound peer connections on"`
	Listen     bool   `long:"listen" description:"Accept inbound peer connections"`

	ConnectPeers []string `long:"connect" description:"Add a peer to connect to at startup; may be specified multiple times"`

	ProtocolMaximum uint32 `long:"protocolmax" description:"Maximum protocol version to advertise and accept"`
	ProtocolMinimum uint32 `long:"protocolmin" description:"Minimum acceptable peer protocol version"`

	MaxPayload uint32 `long:"maxpayload" description:"Maximum accepted message payload size, in bytes"`

	OutboundPeers int `long:"maxoutbound" description:"Target number of outbound peer connections"`
	InboundPeers  int `long:"maxinbound" description:"Maximum number of inbound peer connections"`

	ConnectionTimeout time.Duration `long:"connectiontimeout" description:"Timeout for outbound connection attempts. Valid time units are {ms, s, m, h}."`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,..."`

	magic wire.BitcoinNet
}

// DefaultConfig returns a Config populated with this module's defaults,
// matching the teacher's DefaultConfig convention.
func DefaultConfig() Config {
	return Config{
		ConfigFile:        defaultConfigFilename,
		Network:           "mainnet",
		ListenPort:        defaultListenPort,
		Listen:            true,
		ProtocolMaximum:   defaultProtocolMax,
		ProtocolMinimum:   defaultProtocolMin,
		MaxPayload:        32 * 1024 * 1024,
		OutboundPeers:     8,
		InboundPeers:      117,
		ConnectionTimeout: defaultConnectTimeout,
		DebugLevel:        "info",
	}
}

// Magic resolves Network to its wire.BitcoinNet magic value. Validate
// must have been called first.
func (c Config) Magic() wire.BitcoinNet {
	return c.magic
}

// LoadConfig implements the pre-parse/ini-file/parse-again sequence:
//  1. parse the command line for -C/--configfile and -V/--version
//  2. load the ini file, if present, over the defaults
//  3. parse the command line again so flags take precedence
//  4. validate and resolve derived fields
func LoadConfig(args []string) (*Config, error) {
	preCfg := DefaultConfig()
	parser := flags.NewParser(&preCfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if preCfg.ShowVersion {
		fmt.Println(filepath.Base(os.Args[0]), "version", version)
		os.Exit(0)
	}

	cfg := preCfg
	if err := flags.IniParse(cfg.ConfigFile, &cfg); err != nil {
		if _, ok := err.(*flags.IniError); ok {
			return nil, err
		}
		// A missing config file is fine; everything else comes from
		// defaults and the command line.
	}

	parser = flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field consistency and resolves Network into its
// wire.BitcoinNet magic.
func Validate(cfg *Config) error {
	switch cfg.Network {
	case "mainnet":
		cfg.magic = wire.MainNet
	case "testnet3":
		cfg.magic = wire.TestNet3
	case "simnet":
		cfg.magic = wire.SimNet
	case "regtest":
		cfg.magic = wire.TestNet
	default:
		return fmt.Errorf("config: unknown network %q", cfg.Network)
	}

	if cfg.ProtocolMinimum > cfg.ProtocolMaximum {
		return fmt.Errorf("config: protocolmin (%d) exceeds protocolmax (%d)",
			cfg.ProtocolMinimum, cfg.ProtocolMaximum)
	}

	if cfg.MaxPayload == 0 {
		return fmt.Errorf("config: maxpayload must be nonzero")
	}

	return nil
}
