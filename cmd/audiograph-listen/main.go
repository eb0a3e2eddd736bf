// ABOUTME: Entry point for the audiograph network stream listener
// ABOUTME: Parses CLI flags and plays a network stream through a local backend
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/audiograph/internal/app"
	"github.com/Resonate-Protocol/audiograph/internal/logging"
	"github.com/Resonate-Protocol/audiograph/internal/version"
	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/backend"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/resample"
)

var (
	serverAddr   = flag.String("server", "", "Stream address host:port (default: discover via mDNS)")
	name         = flag.String("name", "", "Listener name (default: hostname)")
	backendName  = flag.String("backend", "", "Audio backend (default: first available of malgo, oto, portaudio)")
	bufferFrames = flag.Int("buffer-frames", 1024, "Device buffer size in frames")
	rate         = flag.Int("rate", 48000, "Render sample rate")
	resampler    = flag.String("resample", "linear", "Resampling method: nearest, linear, cubic, lanczos")
	delay        = flag.Duration("delay", 150*time.Millisecond, "Jitter buffer delay")
	timeout      = flag.Duration("timeout", 10*time.Second, "mDNS discovery timeout")
	volume       = flag.Float64("volume", 1, "Output gain (0-2)")
	logFile      = flag.String("log-file", "", "Also log to this file")
	logLevel     = flag.String("log-level", "info", "Log level: trace, debug, info, warn, error, off")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "audiograph-listen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var out io.Writer = os.Stdout
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		defer f.Close()
		out = io.MultiWriter(out, f)
	}
	log, err := logging.Setup(out, *logLevel)
	if err != nil {
		return err
	}

	backends := backend.NewRegistry()
	backend.RegisterBuiltins(backends)
	var b backend.Backend
	if *backendName != "" {
		b, err = backends.Open(*backendName)
	} else {
		b, err = backends.OpenFirst("malgo", "oto", "portaudio")
	}
	if err != nil {
		return err
	}
	defer b.Shutdown()

	method, err := resample.ParseMethod(*resampler)
	if err != nil {
		return err
	}
	format := audio.FormatHigh.WithSampleRate(*rate)

	listenerName := *name
	if listenerName == "" {
		listenerName, _ = os.Hostname()
	}

	l, err := app.New(app.Config{
		ServerAddr:       *serverAddr,
		Name:             listenerName,
		Backend:          b,
		Format:           format,
		BufferFrames:     *bufferFrames,
		Delay:            *delay,
		DiscoveryTimeout: *timeout,
		Method:           method,
		OnStatus: func(st app.Status) {
			log.Debugf("Stream: rtt %dµs (%s), %d received, %d played, %d dropped, %d underruns",
				st.RTT, st.Quality, st.Scheduler.Received, st.Scheduler.Played,
				st.Scheduler.Dropped, st.Underruns)
		},
	})
	if err != nil {
		return err
	}
	l.Mixer().PostGain().Set(float32(*volume))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("Starting %s listener %s", version.Product, listenerName)
	if err := l.Run(ctx); err != nil {
		return err
	}
	log.Infof("Listener stopped")
	return nil
}
