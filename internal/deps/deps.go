package deps

import (
	"os/exec"
	"strings"

	"github.com/leonardotrapani/copresenter/internal/config"
	"github.com/leonardotrapani/copresenter/internal/playback"
)

// Tool is an external program a configuration relies on.
type Tool struct {
	Name        string
	Purpose     string
	VersionFlag string
}

// Status represents the installation status of a tool
type Status struct {
	Tool
	Installed bool
	Path      string
	Version   string
}

var (
	lookPath = exec.LookPath
	version  = func(path, flag string) ([]byte, error) {
		return exec.Command(path, flag).Output()
	}
)

// Required lists the tools cfg needs, in the order they are used.
func Required(cfg *config.Config) []Tool {
	var tools []Tool
	if cfg.Transcription.Engine == "deepgram" {
		argv := cfg.ToRecordingConfig().Argv()
		tools = append(tools, Tool{Name: argv[0], Purpose: "microphone capture", VersionFlag: "--version"})
	}
	switch cfg.Speech.Backend {
	case "clip":
		player := cfg.Speech.Player
		if len(player) == 0 {
			player = playback.DefaultPlayer
		}
		tools = append(tools, Tool{Name: player[0], Purpose: "clip playback", VersionFlag: "--version"})
	case "local":
		synth := cfg.Speech.SynthCommand
		if synth == "" {
			synth = playback.DefaultSynthCommand
		}
		tools = append(tools, Tool{Name: synth, Purpose: "local speech", VersionFlag: "--version"})
	}
	if cfg.Notifications.Enabled && cfg.NotifierType() == "desktop" {
		tools = append(tools, Tool{Name: "notify-send", Purpose: "desktop notifications", VersionFlag: "--version"})
	}
	return tools
}

// Check looks tool up on PATH and reads the first line of its version output.
func Check(tool Tool) Status {
	path, err := lookPath(tool.Name)
	if err != nil {
		return Status{Tool: tool}
	}

	status := Status{Tool: tool, Installed: true, Path: path}
	if tool.VersionFlag == "" {
		return status
	}
	if output, err := version(path, tool.VersionFlag); err == nil {
		first, _, _ := strings.Cut(string(output), "\n")
		status.Version = strings.TrimSpace(first)
	}
	return status
}

// CheckAll checks every tool cfg needs.
func CheckAll(cfg *config.Config) []Status {
	tools := Required(cfg)
	out := make([]Status, 0, len(tools))
	for _, t := range tools {
		out = append(out, Check(t))
	}
	return out
}

// Missing returns the names of the tools cfg needs that are not on PATH.
func Missing(cfg *config.Config) []string {
	var missing []string
	for _, s := range CheckAll(cfg) {
		if !s.Installed {
			missing = append(missing, s.Name)
		}
	}
	return missing
}
