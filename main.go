// ABOUTME: Entry point for the audiograph player
// ABOUTME: Parses CLI flags, builds the audio graph and plays it through a backend
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Resonate-Protocol/audiograph/internal/discovery"
	"github.com/Resonate-Protocol/audiograph/internal/logging"
	"github.com/Resonate-Protocol/audiograph/internal/protocol"
	"github.com/Resonate-Protocol/audiograph/internal/ui"
	"github.com/Resonate-Protocol/audiograph/internal/version"
	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/backend"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/decode"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/device"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/mixer"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/resample"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/source"
	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"
)

var (
	file         = flag.String("file", "", "Audio file to play (mp3, flac, wav, aiff, ogg). If not specified, plays a test tone")
	tone         = flag.String("tone", "sine", "Test tone waveform: sine, square, sawtooth, triangle, noise")
	toneFreq     = flag.Float64("tone-freq", 440, "Test tone frequency in Hz")
	backendName  = flag.String("backend", "", "Audio backend (default: first available of malgo, oto, portaudio)")
	listBackends = flag.Bool("list-backends", false, "List audio backends and exit")
	listPorts    = flag.Bool("list-ports", false, "List the ports of the selected backend and exit")
	rate         = flag.Int("rate", 48000, "Render sample rate")
	channels     = flag.Int("channels", 2, "Render channel count")
	bits         = flag.Int("bits", 16, "Output bits per sample")
	encoding     = flag.String("encoding", "signed", "Output encoding: signed, unsigned, float, ulaw, alaw")
	bufferFrames = flag.Int("buffer-frames", 1024, "Device buffer size in frames")
	resampler    = flag.String("resample", "linear", "Resampling method: nearest, linear, cubic, lanczos")
	speed        = flag.Float64("speed", 1, "Playback speed of the file")
	volume       = flag.Float64("volume", 1, "Output gain (0-2)")
	pan          = flag.Float64("pan", 0, "Output pan (-1 left, 1 right)")
	loop         = flag.Bool("loop", false, "Loop the file")
	effects      = flag.String("effects", "", "Comma-separated effect chain: "+strings.Join(effectNames(), ", "))
	record       = flag.String("record", "", "Write the output to this WAV file instead of a device")
	streamAddr   = flag.String("stream-addr", "", "Serve the output as a network stream on this address instead of a device")
	streamCodec  = flag.String("stream-codec", "pcm", "Network stream codec: pcm or opus")
	advertise    = flag.Bool("advertise", false, "Advertise the network stream via mDNS")
	name         = flag.String("name", "", "Network stream name (default: hostname-audiograph)")
	logFile      = flag.String("log-file", "audiograph.log", "Log file path (empty to disable)")
	logLevel     = flag.String("log-level", "info", "Log level: trace, debug, info, warn, error, off")
	noTUI        = flag.Bool("no-tui", false, "Disable the console, log to stdout")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

var log = slog.Disabled

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "audiograph: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	useTUI := !*noTUI && !*listBackends && !*listPorts

	// The console owns stdout, so logs go to the file only
	var out io.Writer = os.Stdout
	if useTUI {
		out = io.Discard
	}
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		defer f.Close()
		out = io.MultiWriter(out, f)
	}
	l, err := logging.Setup(out, *logLevel)
	if err != nil {
		return err
	}
	log = l

	backends := backend.NewRegistry()
	backend.RegisterBuiltins(backends)
	selected, err := registerSinks(backends)
	if err != nil {
		return err
	}

	if *listBackends {
		for _, n := range backends.Names() {
			fmt.Println(n)
		}
		return nil
	}

	var b backend.Backend
	if selected != "" {
		b, err = backends.Open(selected)
	} else {
		b, err = backends.OpenFirst("malgo", "oto", "portaudio")
	}
	if err != nil {
		return err
	}
	defer b.Shutdown()

	if *listPorts {
		return printPorts(b)
	}

	format, err := outputFormat()
	if err != nil {
		return err
	}
	method, err := resample.ParseMethod(*resampler)
	if err != nil {
		return err
	}

	node, err := newSource()
	if err != nil {
		return err
	}
	if c, ok := node.(io.Closer); ok {
		defer c.Close()
	}

	master := mixer.New()
	defer master.Close()
	if err := master.AddInput(node); err != nil {
		return err
	}
	master.PostGain().Set(float32(*volume))
	master.Pan().Set(float32(*pan))
	chain, err := parseEffects(*effects)
	if err != nil {
		return err
	}
	for _, e := range chain {
		if err := master.AddEffect(e.effect); err != nil {
			return fmt.Errorf("failed to add %s: %w", e.name, err)
		}
	}

	title, tags := describe(node)
	switch sink := b.(type) {
	case *backend.Stream:
		sink.SetMetadata(protocol.StreamMetadata{Title: title, Artist: tags["artist"], Album: tags["album"]})
		if *advertise {
			stop, err := advertiseStream(sink)
			if err != nil {
				return err
			}
			defer stop()
		}
	case *backend.WAVFile:
		sink.SetTitle(title)
	}

	output := device.NewOutputLayer(b, device.OutputConfig{Method: method})
	if err := output.Open(nil, format, *bufferFrames); err != nil {
		return err
	}
	defer output.Close()
	output.SetRoot(master)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	c := &console{
		backend: b,
		output:  output,
		master:  master,
		source:  node,
		effects: chain,
		title:   title,
		tags:    tags,
	}

	ended := make(chan struct{})
	if s, ok := node.(*source.Sound); ok {
		s.SetLoop(*loop)
		s.Speed().Set(float32(*speed))
		s.AddListener(func(ev source.SoundEvent) {
			if ev == source.SoundEnded {
				select {
				case <-ended:
				default:
					close(ended)
				}
			}
		})
		s.Start()
	}

	if err := output.Start(); err != nil {
		return err
	}
	log.Infof("Playing %s through %s at %s", title, b.Name(), output.Format())
	if !useTUI {
		log.Infof("Press Ctrl-C to stop")
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-ended:
			log.Infof("Playback finished")
			return errDone
		case <-output.Done():
			return output.Err()
		}
	})

	if useTUI {
		controls := ui.NewControls()
		prog := ui.Run(controls, c.mixerState())
		g.Go(func() error {
			_, err := prog.Run()
			if err != nil {
				return fmt.Errorf("console failed: %w", err)
			}
			return errDone
		})
		g.Go(func() error {
			<-gctx.Done()
			prog.Quit()
			return nil
		})
		g.Go(func() error { return c.run(gctx, controls, prog.Send) })
	}

	err = g.Wait()
	if errors.Is(err, errDone) {
		err = nil
	}
	if err := output.Stop(); err != nil {
		log.Warnf("Failed to stop output: %v", err)
	}
	log.Infof("Player stopped")
	return err
}

// errDone ends the errgroup without reporting a failure
var errDone = errors.New("done")

// registerSinks adds the file and network sinks requested by flags and
// returns the backend they select
func registerSinks(r *backend.Registry) (string, error) {
	if *record != "" && *streamAddr != "" {
		return "", fmt.Errorf("-record and -stream-addr are mutually exclusive")
	}
	if *record != "" {
		path := *record
		paced := *file == "" || !*noTUI
		r.Register("wav", func() backend.Backend { return backend.NewWAVFile(path, paced) })
		return "wav", nil
	}
	if *streamAddr != "" {
		cfg := backend.StreamConfig{Addr: *streamAddr, Name: streamName(), Codec: *streamCodec}
		r.Register("stream", func() backend.Backend { return backend.NewStream(cfg) })
		return "stream", nil
	}
	return *backendName, nil
}

func streamName() string {
	if *name != "" {
		return *name
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return hostname + "-audiograph"
}

func advertiseStream(sink *backend.Stream) (func(), error) {
	addr, ok := sink.Addr().(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("cannot advertise %v", sink.Addr())
	}
	m := discovery.NewManager(discovery.Config{
		ServiceName: streamName(),
		Port:        addr.Port,
		Codec:       *streamCodec,
	})
	if err := m.Advertise(); err != nil {
		return nil, err
	}
	return m.Stop, nil
}

func printPorts(b backend.Backend) error {
	ports, err := b.Ports()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Printf("%-6s %-40s %s (%s)\n", p.Flow, p.Name, p.MixFormat, p.Link)
	}
	return nil
}

func outputFormat() (audio.Format, error) {
	enc, err := audio.ParseEncoding(*encoding)
	if err != nil {
		return audio.Format{}, err
	}
	return audio.NewFormat(*rate, *bits, *channels, enc, false)
}

// newSource returns the file sound or the test tone generator
func newSource() (audio.Node, error) {
	if *file == "" {
		w, err := source.ParseWaveform(*tone)
		if err != nil {
			return nil, err
		}
		gen := source.NewGenerator(w)
		gen.Frequency().Set(float32(*toneFreq))
		return gen, nil
	}

	decoders := decode.NewRegistry()
	decode.RegisterBuiltins(decoders)
	res, err := decoders.Open(*file)
	if err != nil {
		return nil, err
	}
	return source.NewSound(res)
}

// describe returns a title and tags for the source
func describe(node audio.Node) (string, map[string]string) {
	switch n := node.(type) {
	case *source.Sound:
		return n.Tags()["title"], n.Tags()
	case *source.Generator:
		return fmt.Sprintf("%s tone %.0f Hz", n.Waveform(), n.Frequency().Value()), map[string]string{}
	}
	return "", map[string]string{}
}
