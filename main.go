package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tuxx/wallpaperd/internal/daemon"
	"github.com/tuxx/wallpaperd/internal/logx"
	"github.com/tuxx/wallpaperd/internal/render"
	"github.com/tuxx/wallpaperd/internal/texture"
	"github.com/tuxx/wallpaperd/internal/transition"
	"github.com/tuxx/wallpaperd/internal/wl"
)

func main() {
	cfg := daemon.DefaultConfig()

	output := flag.String("output", "", "target compositor output name, or ALL/*/all to drive every advertised output")
	media := flag.String("media", "", "path to the video or image to display")
	options := flag.String("options", "", "space-separated option tokens (no-audio, mute, loop, fill, stretch, original, panscan=FLOAT)")
	fps := flag.Int("fps", int(render.FPS60), "frame-rate cap: 30, 60, or 100")
	socket := flag.String("socket", "", "Unix socket path for the control server")
	transKind := flag.String("transition", "none", "initial transition kind: fade or none")
	transDuration := flag.Float64("transition-duration", 0.5, "transition duration in seconds, (0, 5]")
	cacheSizeMB := flag.Int("cache-size", 0, "texture cache size hint in MB (0 disables)")
	saveState := flag.Bool("save-state", true, "persist per-output state on exit")
	noSaveState := flag.Bool("no-save-state", false, "disable state persistence, overrides --save-state")
	restore := flag.Bool("restore", false, "restore media from the last saved state before using --media")
	holderPath := flag.String("holder", "", "path to the re-exec holder helper (unused by this build's in-process media swap)")
	debugMode := flag.Bool("log", false, "enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "wallpaperd: a Wayland layer-shell wallpaper daemon\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -output NAME -media PATH -socket PATH [options]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *debugMode {
		logx.Init(logx.LevelDebug, true)
	} else {
		logx.Init(logx.LevelInfo, false)
	}

	if *output == "" || *socket == "" {
		fmt.Fprintln(os.Stderr, "wallpaperd: -output and -socket are required")
		flag.Usage()
		os.Exit(2)
	}
	if *media == "" && !*restore {
		fmt.Fprintln(os.Stderr, "wallpaperd: -media is required unless -restore is given")
		flag.Usage()
		os.Exit(2)
	}

	cfg.Output = *output
	cfg.MediaPath = *media
	cfg.RawOptions = *options
	cfg.SocketPath = *socket
	cfg.CacheSizeMB = *cacheSizeMB
	cfg.SaveState = *saveState && !*noSaveState
	cfg.Restore = *restore
	cfg.HolderPath = *holderPath

	switch *fps {
	case 30:
		cfg.FPS = render.FPS30
	case 60:
		cfg.FPS = render.FPS60
	case 100:
		cfg.FPS = render.FPS100
	default:
		fmt.Fprintf(os.Stderr, "wallpaperd: invalid -fps %d (must be 30, 60, or 100)\n", *fps)
		os.Exit(2)
	}

	switch *transKind {
	case "fade":
		cfg.TransitionKind = transition.Fade
	case "none":
		cfg.TransitionKind = transition.None
	default:
		fmt.Fprintf(os.Stderr, "wallpaperd: invalid -transition %q (must be fade or none)\n", *transKind)
		os.Exit(2)
	}
	cfg.TransitionSecs = *transDuration

	if err := run(cfg); err != nil {
		logx.Error("wallpaperd: %v", err)
		os.Exit(1)
	}
}

// allOutputsSentinel returns true when name requests "every advertised
// output" rather than one matched by make/model, mirroring the
// "ALL"/"*"/"all" sentinel accepted by -output.
func allOutputsSentinel(name string) bool {
	return name == "ALL" || name == "*" || name == "all"
}

func run(cfg daemon.Config) error {
	client := wl.NewClient()
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect to compositor: %w", err)
	}

	allOutputs := client.Outputs()
	if len(allOutputs) == 0 {
		return fmt.Errorf("no outputs advertised by compositor")
	}

	var matched []wl.OutputInfo
	if allOutputsSentinel(cfg.Output) {
		matched = allOutputs
	} else {
		for i := range allOutputs {
			o := allOutputs[i]
			if o.Make == cfg.Output || o.Model == cfg.Output {
				matched = append(matched, o)
			}
		}
		if len(matched) == 0 {
			// wl_output exposes no connector name (that needs
			// xdg_output_v1, not part of this build); fall back to the
			// first output and log what it actually is so a mismatch is
			// visible.
			matched = allOutputs[:1]
			logx.Warn("wallpaperd: could not match output %q by make/model, using %s/%s", cfg.Output, matched[0].Make, matched[0].Model)
		}
	}

	backend := texture.NewShmBackend()
	targets := make([]daemon.OutputTarget, 0, len(matched))
	surfaces := make([]*wl.Surface, 0, len(matched))
	for i := range matched {
		info := matched[i]
		width, height := info.Width, info.Height
		if width == 0 || height == 0 {
			width, height = 1920, 1080
		}
		surf, err := client.NewSurface(info, width, height)
		if err != nil {
			return fmt.Errorf("create layer surface for output %d: %w", info.Name, err)
		}
		name := info.Make
		if name == "" {
			name = info.Model
		}
		if name == "" {
			name = fmt.Sprintf("output-%d", info.Name)
		}
		targets = append(targets, daemon.OutputTarget{Name: name, Presenter: surf, Width: width, Height: height})
		surfaces = append(surfaces, surf)
	}

	d, err := daemon.New(cfg, targets, backend, backend)
	if err != nil {
		return fmt.Errorf("assemble daemon: %w", err)
	}

	if cfg.Restore {
		if err := d.Restore(); err != nil {
			logx.Warn("wallpaperd: restore failed: %v", err)
		}
	}

	if d.Media().Path == "" {
		return fmt.Errorf("no media to display: -media not given and no saved state was usable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.StartDecoder(ctx); err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}

	loop := daemon.NewMainLoop(d, client)
	for i, out := range d.Outputs() {
		surfaces[i].OnFrameCallback(func() {
			d.NotifyFrameDone(out)
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-sigCh
		logx.Info("wallpaperd: received %v, shutting down", sig)
		// A hangup asks for reload-via-restart: same teardown, clean
		// exit code, the service manager restarts us with -restore.
		cancel()
	}()

	err = loop.Run(ctx)
	d.Shutdown()
	return err
}
