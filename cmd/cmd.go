// Package cmd parse args to configure application.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voicemesh/media"
	"voicemesh/metric"
	"voicemesh/relay/ws"
	"voicemesh/speaking"
	"voicemesh/voicemesh"
)

// Options bundles the client config with command-line only settings.
type Options struct {
	Config  voicemesh.Config
	Channel string // Channel to join on startup; empty means stay idle
	Debug   bool
}

// Run starts the application and blocks until interrupted.
func Run() {
	opts, err := SetupConfig(os.Stdout, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).Level(level)

	mesh, err := voicemesh.New(opts.Config)
	if err != nil {
		log.Error().Err(err).Msg("failed to start")
		os.Exit(1)
	}
	mesh.Start()

	if opts.Channel != "" {
		if err := mesh.Session().Join(opts.Channel); err != nil {
			log.Error().Err(err).Str("channel", opts.Channel).Msg("failed to join channel")
			_ = mesh.Stop()
			os.Exit(1)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	if err := mesh.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to shut down cleanly")
		os.Exit(1)
	}
}

// SetupConfig sets up and returns the configuration.
func SetupConfig(w io.Writer, args []string) (Options, error) {
	opts, err := Parse(w, args)
	if err != nil {
		return opts, err
	}
	if err = opts.Config.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Parse parses the command line arguments.
func Parse(w io.Writer, args []string) (Options, error) {
	opts := Options{}

	fs := flag.NewFlagSet("voicemesh", flag.ContinueOnError)
	fs.SetOutput(w)
	fs.Uint64Var(&opts.Config.ClientNum, "id", 0, "numeric client identity")
	fs.StringVar(&opts.Config.Handle, "handle", "", "display name")
	fs.StringVar(&opts.Channel, "channel", "", "channel to join on startup")
	fs.StringVar(&opts.Config.Relay.URL, "relay", "", "relay host:port")
	fs.StringVar(&opts.Config.Relay.Path, "relay-path", ws.DefaultPath, "relay websocket path")
	fs.DurationVar(&opts.Config.Relay.DialTimeout, "dial-timeout", ws.DefaultDialTimeout, "relay dial timeout")
	fs.DurationVar(&opts.Config.Relay.RedialInterval, "redial-interval", ws.DefaultRedialInterval, "relay redial interval")
	fs.IntVar(&opts.Config.Metrics.Port, "metrics-port", metric.DefaultMetricsPort, "metrics server port")
	fs.StringVar(&opts.Config.Metrics.Path, "metrics-path", metric.DefaultMetricsPath, "metrics endpoint path")
	fs.DurationVar(&opts.Config.Speaking.Interval, "speaking-interval", speaking.DefaultInterval, "speaking sample interval")
	fs.Float64Var(&opts.Config.Speaking.Threshold, "speaking-threshold", speaking.DefaultThreshold, "speaking level threshold")
	fs.BoolVar(&opts.Debug, "debug", false, "debug mode")

	var stun string
	fs.StringVar(&stun, "stun", media.DefaultSTUNServer, "stun server url")

	err := fs.Parse(args)
	if err != nil {
		return Options{}, fmt.Errorf("failed to parse args: %w", err)
	}

	if fs.NArg() != 0 {
		return Options{}, errors.New("some args are not parsed")
	}

	opts.Config.Media.STUNServers = []string{stun}
	return opts, nil
}
