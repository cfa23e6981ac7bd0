package tui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/leonardotrapani/copresenter/internal/config"
	"github.com/leonardotrapani/copresenter/internal/language"
)

func getProviderDisplayName(name string) string {
	if display, ok := providerDisplayNames[name]; ok {
		return display
	}
	return name
}

// maskAPIKey returns a masked version of an API key for display
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// getConfiguredProviders returns the sorted providers with a stored API key
func getConfiguredProviders(cfg *config.Config) []string {
	var providers []string
	for name, pc := range cfg.Providers {
		if pc.APIKey != "" {
			providers = append(providers, name)
		}
	}
	slices.Sort(providers)
	return providers
}

func formatProviderOption(cfg *config.Config, name string) string {
	status := "(not configured)"
	if pc, ok := cfg.Providers[name]; ok && pc.APIKey != "" {
		status = "(configured)"
	} else if cfg.APIKey(name) != "" {
		status = "(from environment)"
	}

	switch name {
	case "openai":
		return fmt.Sprintf("OpenAI - GPT continuations %s", status)
	case "groq":
		return fmt.Sprintf("Groq - Llama continuations %s", status)
	case "gemini":
		return fmt.Sprintf("Gemini - Gemini continuations %s", status)
	case "elevenlabs":
		return fmt.Sprintf("ElevenLabs - Voice clips %s", status)
	case "deepgram":
		return fmt.Sprintf("Deepgram - Live transcription %s", status)
	default:
		return fmt.Sprintf("%s %s", name, status)
	}
}

// languageOptions lists the engine default and every base language. A
// regional code already in the config is kept as its own option.
func languageOptions(current string) []huh.Option[string] {
	options := []huh.Option[string]{huh.NewOption(language.Default.Name, language.Default.Code)}
	if lang, ok := language.Parse(current); ok && strings.Contains(current, "-") {
		options = append(options, huh.NewOption(fmt.Sprintf("%s [%s]", lang.Name, lang.Code), lang.Code))
	}
	for _, lang := range language.List() {
		options = append(options, huh.NewOption(fmt.Sprintf("%s [%s]", lang.Name, lang.Code), lang.Code))
	}
	return options
}

func formatProvidersLabel(cfg *config.Config) string {
	n := len(getConfiguredProviders(cfg))
	if n == 0 {
		return "Providers"
	}
	return fmt.Sprintf("Providers (%d configured)", n)
}

func formatGestureLabel(cfg *config.Config) string {
	return fmt.Sprintf("Gestures (cooldown %s)", cfg.Gesture.Cooldown)
}

func formatTranscriptionLabel(cfg *config.Config) string {
	return fmt.Sprintf("Transcription (%s)", cfg.Transcription.Engine)
}

func formatContinuationLabel(cfg *config.Config) string {
	return fmt.Sprintf("Continuation (%s)", cfg.Continuation.Provider)
}

func formatSpeechLabel(cfg *config.Config) string {
	return fmt.Sprintf("Speech (%s)", cfg.Speech.Backend)
}

func formatNotificationsLabel(cfg *config.Config) string {
	if !cfg.Notifications.Enabled {
		return "Notifications (off)"
	}
	return fmt.Sprintf("Notifications (%s)", cfg.Notifications.Type)
}

// summaryLines renders the settings shown before saving.
func summaryLines(cfg *config.Config) []string {
	line := func(label, value string) string {
		return fmt.Sprintf("  %s %s", StyleLabel.Render(label), value)
	}

	providers := strings.Join(getConfiguredProviders(cfg), ", ")
	if providers == "" {
		providers = StyleMuted.Render("none stored")
	}

	lines := []string{
		line("Providers:", providers),
		line("Gestures:", fmt.Sprintf("wave=%s interrupt=%s cooldown=%s",
			cfg.Gesture.WaveLabel, cfg.Gesture.InterruptLabel, cfg.Gesture.Cooldown)),
		line("Transcription:", cfg.Transcription.Engine),
	}
	if lang, ok := language.Parse(cfg.Transcription.Language); ok && lang.Code != "" {
		lines = append(lines, line("Language:", lang.Name))
	}

	continuation := cfg.Continuation.Provider
	switch {
	case cfg.Continuation.URL != "" && (continuation == "websocket" || continuation == "sse"):
		continuation += " " + cfg.Continuation.URL
	case cfg.Continuation.Model != "":
		continuation += " (" + cfg.Continuation.Model + ")"
	}
	lines = append(lines,
		line("Continuation:", continuation),
		line("Style:", cfg.Continuation.Style),
		line("Speech:", cfg.Speech.Backend),
		line("Server:", cfg.Server.Addr),
	)

	if cfg.Notifications.Enabled {
		lines = append(lines, line("Notifications:", cfg.Notifications.Type))
	} else {
		lines = append(lines, line("Notifications:", "disabled"))
	}
	return lines
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Configuration Summary"))
	for _, l := range summaryLines(cfg) {
		fmt.Println(l)
	}
	fmt.Println()

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

func requireText(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration format (use '500ms', '5s', etc.)")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validatePositiveDuration(s string) error {
	if err := validateDuration(s); err != nil {
		return err
	}
	if d, _ := time.ParseDuration(strings.TrimSpace(s)); d == 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateFloatRange(lo, hi float64) func(string) error {
	return func(s string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		if f < lo || f > hi {
			return fmt.Errorf("must be between %v and %v", lo, hi)
		}
		return nil
	}
}
