// Package main is the entry point for the tlsgate gateway.
//
// tlsgate accepts TLS connections, reads one HTTP CONNECT request per
// connection, checks the requested destination against a regular expression
// and relays bytes between the client and the destination.
//
// Usage:
//
//	tlsgate 0.0.0.0:8443 -c identity.p12 -p secret -d '.*\.internal:\d+'
//	tlsgate 0.0.0.0:8443 --cert cert.pem --key key.pem --self-signed
//	tlsgate --config /etc/tlsgate/config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/ayanrajpoot10/tlsgate/internal/config"
	"github.com/ayanrajpoot10/tlsgate/internal/identity"
	"github.com/ayanrajpoot10/tlsgate/internal/policy"
	"github.com/ayanrajpoot10/tlsgate/internal/server"
)

var app = kingpin.New("tlsgate", "A TLS-terminating CONNECT gateway that only tunnels to allowed destinations.")

var (
	listenAddr  = app.Arg("addr", "Address and port to listen on (HOST:PORT).").String()
	configPath  = app.Flag("config", "Path to a YAML configuration file.").PlaceHolder("PATH").String()
	pkcs12Path  = app.Flag("pkcs12", "The certificate file in PKCS#12 format for the server.").Short('c').PlaceHolder("PATH").String()
	password    = app.Flag("password", "The password for the PKCS#12 file.").Short('p').PlaceHolder("PASS").String()
	certFile    = app.Flag("cert", "PEM certificate chain for the server.").PlaceHolder("PATH").String()
	keyFile     = app.Flag("key", "PEM private key for the server.").PlaceHolder("PATH").String()
	selfSigned  = app.Flag("self-signed", "Generate --cert and --key as a self-signed pair when they do not exist.").Bool()
	destPattern = app.Flag("destination-pattern", "Regular expression the CONNECT destination must match.").Short('d').PlaceHolder("REGEX").String()
	logLevel    = app.Flag("log-level", "Log level (debug, info, warn, error).").String()
	logFormat   = app.Flag("log-format", "Log format (console, json).").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := loadConfig(parsedFlags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// flagValues holds the parsed command line.
type flagValues struct {
	ConfigPath         string
	Listen             string
	PKCS12             string
	Password           string
	CertFile           string
	KeyFile            string
	SelfSigned         bool
	DestinationPattern string
	LogLevel           string
	LogFormat          string
}

func parsedFlags() flagValues {
	return flagValues{
		ConfigPath:         *configPath,
		Listen:             *listenAddr,
		PKCS12:             *pkcs12Path,
		Password:           *password,
		CertFile:           *certFile,
		KeyFile:            *keyFile,
		SelfSigned:         *selfSigned,
		DestinationPattern: *destPattern,
		LogLevel:           *logLevel,
		LogFormat:          *logFormat,
	}
}

// loadConfig reads the config file named by --config, or the default one when
// it exists, then lets every flag that was set override the file.
func loadConfig(f flagValues) (*config.Config, error) {
	path := f.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg := &config.Config{}
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	override(&cfg.Listen, f.Listen)
	override(&cfg.PKCS12, f.PKCS12)
	override(&cfg.Password, f.Password)
	override(&cfg.CertFile, f.CertFile)
	override(&cfg.KeyFile, f.KeyFile)
	override(&cfg.DestinationPattern, f.DestinationPattern)
	override(&cfg.LogLevel, f.LogLevel)
	override(&cfg.LogFormat, f.LogFormat)
	if f.SelfSigned {
		cfg.SelfSigned = true
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// run starts the server and blocks until SIGINT or SIGTERM, then shuts down
// every active session.
func run(cfg *config.Config, logger *zap.Logger) error {
	cert, err := identity.Load(cfg)
	if err != nil {
		return err
	}
	validator, err := policy.NewValidator(cfg.DestinationPattern)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		TLSConfig: identity.ServerConfig(cert),
		Validator: validator,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting tlsgate",
		zap.String("listen", cfg.Listen),
		zap.Stringer("destination_pattern", validator))
	err = srv.ListenAndServe(ctx, cfg.Listen)

	logger.Info("shutting down")
	srv.Shutdown()
	return err
}
