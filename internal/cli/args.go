package cli

import (
	"os"
	"strings"
)

// Args is the parsed command line.
type Args struct {
	ConfigPath string
	Command    string
	Params     []string
	Refresh    bool
}

// ParseArgs reads `-c/--config <path>`, `--refresh`, a command name and its
// positional parameters. Without a command it defaults to "serve"; without a
// config flag it falls back to `config.yaml`.
func ParseArgs(argv []string) Args {
	a := Args{ConfigPath: "config.yaml"}
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "-c" || arg == "--config":
			if i+1 < len(argv) {
				a.ConfigPath = argv[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--config="):
			a.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--refresh" || arg == "-r":
			a.Refresh = true
		case a.Command == "":
			a.Command = arg
		default:
			a.Params = append(a.Params, arg)
		}
	}
	if a.Command == "" {
		a.Command = "serve"
	}
	return a
}

// Exit terminates the process with the given exit code.
func Exit(code int) {
	os.Exit(code)
}
