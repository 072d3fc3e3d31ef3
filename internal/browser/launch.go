package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"plannercolors/internal/logging"
)

type launchFlag struct {
	name  flags.Flag
	value string
	set   bool
}

// parseLaunchFlags turns "--name=value" style arguments into launcher
// flags. Leading dashes are optional.
func parseLaunchFlags(args []string) []launchFlag {
	out := make([]launchFlag, 0, len(args))
	for _, arg := range args {
		name, value, set := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		out = append(out, launchFlag{name: flags.Flag(name), value: value, set: set})
	}
	return out
}

// resolveControlURL returns the DevTools websocket to connect to: the
// configured debugger URL, else a Chrome started from the launch command,
// else a Chrome found or downloaded by rod.
func resolveControlURL(cfg Config) (string, error) {
	if cfg.DebuggerURL != "" {
		return cfg.DebuggerURL, nil
	}
	if len(cfg.Launch) == 0 {
		u, err := launcher.New().Headless(cfg.Headless).Launch()
		if err != nil {
			return "", fmt.Errorf("launch chrome: %w", err)
		}
		return u, nil
	}

	bin := cfg.Launch[0]
	l := launcher.New().Bin(bin).Headless(cfg.Headless)
	for _, f := range parseLaunchFlags(cfg.Launch[1:]) {
		if f.set {
			l = l.Set(f.name, f.value)
		} else {
			l = l.Set(f.name)
		}
	}
	u, err := l.Launch()
	if err == nil {
		return u, nil
	}

	// Unknown flags make some Chrome builds exit at once; retry without them.
	logging.BrowserWarn("launching %s with flags failed, retrying bare: %v", bin, err)
	u, bareErr := launcher.New().Bin(bin).Headless(cfg.Headless).Launch()
	if bareErr != nil {
		return "", fmt.Errorf("launch %s: %w (bare retry: %v)", bin, err, bareErr)
	}
	return u, nil
}
