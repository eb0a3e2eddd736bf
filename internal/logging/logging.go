// ABOUTME: Subsystem logger setup for the audiograph binaries
// ABOUTME: Creates one slog backend and installs a tagged logger in every package
package logging

import (
	"fmt"
	"io"
	"slices"

	"github.com/Resonate-Protocol/audiograph/internal/app"
	"github.com/Resonate-Protocol/audiograph/internal/client"
	"github.com/Resonate-Protocol/audiograph/internal/discovery"
	"github.com/Resonate-Protocol/audiograph/internal/player"
	"github.com/Resonate-Protocol/audiograph/internal/sync"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/backend"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/dataline"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/decode"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/device"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/mixer"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/source"
	"github.com/decred/slog"
)

// subsystems maps each tag to the package that logs under it
var subsystems = map[string]func(slog.Logger){
	"MIXR": mixer.UseLogger,
	"DLIN": dataline.UseLogger,
	"DEVC": device.UseLogger,
	"BKND": backend.UseLogger,
	"DECO": decode.UseLogger,
	"SRCE": source.UseLogger,
	"DISC": discovery.UseLogger,
	"CLNT": client.UseLogger,
	"SYNC": sync.UseLogger,
	"PLAY": player.UseLogger,
	"LSTN": app.UseLogger,
}

// Subsystems returns the registered tags in sorted order
func Subsystems() []string {
	tags := make([]string, 0, len(subsystems)+1)
	for tag := range subsystems {
		tags = append(tags, tag)
	}
	tags = append(tags, "MAIN")
	slices.Sort(tags)
	return tags
}

// Setup writes every subsystem to w at level ("trace", "debug", "info",
// "warn", "error", "critical" or "off") and returns the MAIN logger
func Setup(w io.Writer, level string) (slog.Logger, error) {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	b := slog.NewBackend(w)
	for tag, use := range subsystems {
		l := b.Logger(tag)
		l.SetLevel(lvl)
		use(l)
	}

	mainLog := b.Logger("MAIN")
	mainLog.SetLevel(lvl)
	return mainLog, nil
}

// Disable restores the disabled logger in every package
func Disable() {
	for _, use := range subsystems {
		use(slog.Disabled)
	}
}
