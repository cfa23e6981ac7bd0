package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/leonardotrapani/copresenter/internal/bus"
	"github.com/leonardotrapani/copresenter/internal/config"
	"github.com/leonardotrapani/copresenter/internal/daemon"
	"github.com/leonardotrapani/copresenter/internal/deps"
	"github.com/leonardotrapani/copresenter/internal/tui"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "copresenter",
	Short:        "Hand the talk over to an AI co-presenter with a wave",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		waveCmd(),
		interruptCmd(),
		styleCmd(),
		statusCmd(),
		watchCmd(),
		versionCmd(),
		stopCmd(),
		configureCmd(),
		doctorCmd(),
	)
}

func serveCmd() *cobra.Command {
	var (
		configPath string
		envFiles   []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(envFiles...); err != nil {
				return err
			}
			mgr, err := config.NewManager(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			d, err := daemon.New(mgr, daemon.Components{})
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: $"+config.PathEnv+" or the user config dir)")
	cmd.Flags().StringSliceVar(&envFiles, "env", nil, "Env files to load before reading the config (default: ./.env)")

	return cmd
}

func waveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wave",
		Short: "Hand off to the co-presenter, as if the wave gesture was seen",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(bus.CmdWave, "", "trigger handoff")
		},
	}
}

func interruptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interrupt",
		Short: "Stop the co-presenter and take the floor back",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(bus.CmdInterrupt, "", "interrupt")
		},
	}
}

func styleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "style [text...]",
		Short: "Set the continuation style (empty resets to the default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(bus.CmdStyle, strings.Join(args, " "), "set style")
		},
	}
}

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Get current co-presenter status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return sendAndPrint(bus.CmdStatusJSON, "", "get status")
			}
			return sendAndPrint(bus.CmdStatus, "", "get status")
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full status as JSON")

	return cmd
}

func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunWatch(nil, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", tui.DefaultWatchInterval, "Polling interval")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(bus.CmdVersion, "", "get version")
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(bus.CmdQuit, "", "stop daemon")
		},
	}
}

// sendAndPrint prints the daemon's reply and turns an ERR reply into a
// non-zero exit.
func sendAndPrint(cmd byte, arg, what string) error {
	resp, err := bus.SendCommand(cmd, arg)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	fmt.Print(resp)
	return replyError(resp)
}

func replyError(resp string) error {
	if reason, ok := strings.CutPrefix(strings.TrimSpace(resp), "ERR"); ok {
		return fmt.Errorf("daemon refused: %s", strings.TrimSpace(reason))
	}
	return nil
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the external tools the current config needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				fmt.Printf("config: %v\n", err)
			}

			missing := 0
			for _, s := range deps.CheckAll(cfg) {
				switch {
				case !s.Installed:
					missing++
					fmt.Printf("missing  %-12s %s\n", s.Name, s.Purpose)
				case s.Version != "":
					fmt.Printf("ok       %-12s %s (%s)\n", s.Name, s.Purpose, s.Version)
				default:
					fmt.Printf("ok       %-12s %s\n", s.Name, s.Purpose)
				}
			}
			if missing > 0 {
				return fmt.Errorf("%d required tool(s) not found on PATH", missing)
			}
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration editor for copresenter.
This will guide you through setting up:
- Provider API keys (OpenAI, Groq, Gemini, ElevenLabs, Deepgram)
- Gesture labels and cooldown
- Transcription and continuation sources
- Speech, server and notification preferences`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.RunConfigure(cfg)
	if err != nil {
		return fmt.Errorf("configuration editor error: %w", err)
	}

	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}

	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Println()

	showNextSteps(result.Config)

	return nil
}

func showNextSteps(cfg *config.Config) {
	serviceRunning := false
	if err := exec.Command("systemctl", "--user", "is-active", "--quiet", "copresenter.service").Run(); err == nil {
		serviceRunning = true
	}

	fmt.Println("Next Steps:")
	step := 1
	if !serviceRunning {
		fmt.Printf("%d. Start the daemon: copresenter serve\n", step)
	} else {
		fmt.Printf("%d. Style, cooldown and continuation changes apply live; restart the service for the rest: systemctl --user restart copresenter.service\n", step)
	}
	step++
	if cfg.Transcription.Engine == "remote" {
		fmt.Printf("%d. Open the presenter page at http://%s/ (it connects to /ingest)\n", step, displayAddr(cfg.Server.Addr))
		step++
	}
	fmt.Printf("%d. Try a handoff: copresenter wave, then follow along with copresenter watch\n", step)
	fmt.Println()

	configPath, _ := config.GetConfigPath()
	fmt.Printf("Config file location: %s\n", configPath)
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
