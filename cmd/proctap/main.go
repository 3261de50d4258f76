// Command proctap is a thin CLI wrapper around the proctap library: point
// it at a process id, optionally request a different sample rate, channel
// count, or resample quality, and stream raw PCM to standard output.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"proctap"
)

const (
	exitOK = iota
	exitInvalidArgs
	exitUnsupportedOS
	exitTargetNotFound
	exitPermissionDenied
	exitBackendUnavailable
	exitCaptureError
)

var (
	flagPID             = pflag.Uint32("pid", 0, "target process id (mutually exclusive with --name)")
	flagName            = pflag.String("name", "", "target process name, resolved to a pid externally (mutually exclusive with --pid)")
	flagStdout          = pflag.Bool("stdout", false, "emit raw PCM to standard output")
	flagSampleRate      = pflag.Uint32("sample-rate", 0, "requested sample rate (0 = native)")
	flagChannels        = pflag.Int("channels", 0, "requested channel count, 1 or 2 (0 = native)")
	flagResampleQuality = pflag.String("resample-quality", "best", "resample quality: best|medium|fast")
)

func main() {
	pflag.Parse()
	os.Exit(run())
}

func run() int {
	log := charmlog.Default()

	havePID := pflag.CommandLine.Changed("pid")
	haveName := *flagName != ""
	if havePID == haveName {
		fmt.Fprintln(os.Stderr, "exactly one of --pid or --name is required")
		return exitInvalidArgs
	}
	if *flagChannels != 0 && *flagChannels != 1 && *flagChannels != 2 {
		fmt.Fprintln(os.Stderr, "--channels must be 1 or 2")
		return exitInvalidArgs
	}

	quality, ok := parseQuality(*flagResampleQuality)
	if !ok {
		fmt.Fprintf(os.Stderr, "--resample-quality must be best, medium, or fast, got %q\n", *flagResampleQuality)
		return exitInvalidArgs
	}

	var target proctap.Target
	if havePID {
		target = proctap.ProcessTarget(*flagPID)
	} else {
		// Process-name resolution is out of scope for the library (spec
		// §1); the CLI only accepts a name for symmetry with other capture
		// tools and reports it unsupported without an external lookup.
		fmt.Fprintln(os.Stderr, "--name requires an external pid lookup; pass --pid instead")
		return exitInvalidArgs
	}

	var requested *proctap.Format
	if *flagSampleRate != 0 || *flagChannels != 0 {
		requested = &proctap.Format{
			SampleRate:   int(*flagSampleRate),
			Channels:     *flagChannels,
			SampleFormat: proctap.SampleFormatInt16,
		}
	}

	sess, err := proctap.Open(target, proctap.Config{
		Requested:       requested,
		ResampleQuality: quality,
	})
	if err != nil {
		return reportAndExit(err)
	}
	defer sess.Close()

	if err := sess.Start(); err != nil {
		return reportAndExit(err)
	}
	log.Infof("capturing from %s", target)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("stopping")
		sess.Stop()
	}()

	var out io.Writer = io.Discard
	if *flagStdout {
		out = os.Stdout
	}

	for chunk := range sess.Stream() {
		if _, err := out.Write(chunk.Bytes); err != nil {
			fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
			return exitCaptureError
		}
	}

	return exitOK
}

func parseQuality(s string) (proctap.ResampleQuality, bool) {
	switch s {
	case "best":
		return proctap.ResampleBest, true
	case "medium":
		return proctap.ResampleMedium, true
	case "fast":
		return proctap.ResampleFast, true
	default:
		return 0, false
	}
}

func reportAndExit(err error) int {
	kind := proctap.KindOf(err)
	fmt.Fprintf(os.Stderr, "proctap: %v\n", err)
	switch kind {
	case proctap.KindInvalidTarget:
		return exitInvalidArgs
	case proctap.KindUnsupportedOS:
		return exitUnsupportedOS
	case proctap.KindTargetNotFound:
		return exitTargetNotFound
	case proctap.KindPermissionDenied:
		return exitPermissionDenied
	case proctap.KindBackendUnavailable, proctap.KindBackendTimeout:
		return exitBackendUnavailable
	default:
		return exitCaptureError
	}
}
