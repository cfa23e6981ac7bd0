package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/leonardotrapani/copresenter/internal/config"
)

// editProviders handles the providers section edit with submenu
func editProviders(cfg *config.Config) error {
	for {
		var options []huh.Option[string]
		for _, name := range AllProviders {
			options = append(options, huh.NewOption(formatProviderOption(cfg, name), name))
		}
		options = append(options, huh.NewOption("Done", "back"))

		var selected string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Provider Settings").
					Description("Select a provider to configure API key").
					Options(options...).
					Value(&selected),
			),
		).WithTheme(getTheme())

		if err := form.Run(); err != nil {
			return err
		}
		if selected == "back" {
			return nil
		}

		apiKey, err := configureSingleProvider(cfg, selected)
		if err != nil || apiKey == "" {
			continue
		}
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]config.ProviderConfig)
		}
		cfg.Providers[selected] = config.ProviderConfig{APIKey: apiKey}
	}
}

// configureSingleProvider asks whether to replace an existing key, then
// prompts for the new one. It returns "" when the current key is kept.
func configureSingleProvider(cfg *config.Config, name string) (string, error) {
	displayName := getProviderDisplayName(name)
	if pc, ok := cfg.Providers[name]; ok && pc.APIKey != "" {
		var update bool
		confirmForm := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("%s API Key", displayName)).
					Description(fmt.Sprintf("Current: %s", maskAPIKey(pc.APIKey))).
					Affirmative("Update key").
					Negative("Keep current").
					Value(&update),
			),
		).WithTheme(getTheme())
		if err := confirmForm.Run(); err != nil {
			return "", err
		}
		if !update {
			return "", nil
		}
	}

	desc := fmt.Sprintf("Enter your %s API key", displayName)
	if env := config.EnvVarForProvider(name); env != "" {
		desc += fmt.Sprintf(" (or leave it to $%s)", env)
	}

	var apiKey string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("%s API Key", displayName)).
				Description(desc).
				EchoMode(huh.EchoModePassword).
				Value(&apiKey).
				Validate(requireText("API key")),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(apiKey), nil
}

func editGesture(cfg *config.Config) error {
	cooldown := cfg.Gesture.Cooldown.String()
	tick := cfg.Gesture.Tick.String()
	maxAge := cfg.Gesture.FrameMaxAge.String()
	neutral := cfg.Gesture.NeutralLabel
	wave := cfg.Gesture.WaveLabel
	interrupt := cfg.Gesture.InterruptLabel

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cooldown").
				Description("Minimum time between two hand-offs (e.g. '5s').").
				Placeholder("5s").
				Value(&cooldown).
				Validate(validateDuration),
			huh.NewInput().
				Title("Tick").
				Description("How often gestures are sampled.").
				Placeholder("100ms").
				Value(&tick).
				Validate(validatePositiveDuration),
			huh.NewInput().
				Title("Frame Max Age").
				Description("Gesture frames older than this are ignored.").
				Placeholder("500ms").
				Value(&maxAge).
				Validate(validatePositiveDuration),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Neutral Label").
				Description("Primary model category meaning no hand shape.").
				Value(&neutral).
				Validate(requireText("label")),
			huh.NewInput().
				Title("Wave Label").
				Description("Secondary model category that hands off.").
				Value(&wave).
				Validate(requireText("label")),
			huh.NewInput().
				Title("Interrupt Label").
				Description("Primary model category that stops everything.").
				Value(&interrupt).
				Validate(requireText("label")),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Gesture.Cooldown, _ = time.ParseDuration(strings.TrimSpace(cooldown))
	cfg.Gesture.Tick, _ = time.ParseDuration(strings.TrimSpace(tick))
	cfg.Gesture.FrameMaxAge, _ = time.ParseDuration(strings.TrimSpace(maxAge))
	cfg.Gesture.NeutralLabel = strings.TrimSpace(neutral)
	cfg.Gesture.WaveLabel = strings.TrimSpace(wave)
	cfg.Gesture.InterruptLabel = strings.TrimSpace(interrupt)
	return nil
}

func editTranscription(cfg *config.Config) error {
	engine := cfg.Transcription.Engine
	model := cfg.Transcription.Model
	language := cfg.Transcription.Language
	attempts := strconv.Itoa(cfg.Transcription.RetryAttempts)
	delay := cfg.Transcription.RetryDelay.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Speech Engine").
				Options(
					huh.NewOption("Browser page (Web Speech via /ingest)", "remote"),
					huh.NewOption("Deepgram live (microphone via pw-record)", "deepgram"),
				).
				Value(&engine),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Model").
				Description("Deepgram model (deepgram engine only).").
				Placeholder("nova-3").
				Value(&model),
			huh.NewSelect[string]().
				Title("Language").
				Description("Spoken language of the talk").
				Options(languageOptions(language)...).
				Height(8).
				Value(&language),
			huh.NewInput().
				Title("Retry Attempts").
				Description("Restarts after a network error.").
				Value(&attempts).
				Validate(validateNonNegativeInt),
			huh.NewInput().
				Title("Retry Delay").
				Value(&delay).
				Validate(validateDuration),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Transcription.Engine = engine
	cfg.Transcription.Model = strings.TrimSpace(model)
	cfg.Transcription.Language = strings.TrimSpace(language)
	cfg.Transcription.RetryAttempts, _ = strconv.Atoi(strings.TrimSpace(attempts))
	cfg.Transcription.RetryDelay, _ = time.ParseDuration(strings.TrimSpace(delay))

	if engine == "deepgram" {
		ensureProviderConfigured(cfg, "deepgram")
	}
	return nil
}

func editContinuation(cfg *config.Config) error {
	provider := cfg.Continuation.Provider
	model := cfg.Continuation.Model
	style := cfg.Continuation.Style
	url := cfg.Continuation.URL

	providerForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Continuation Provider").
				Description("Who writes what the co-presenter says").
				Options(
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Groq", "groq"),
					huh.NewOption("Gemini", "gemini"),
					huh.NewOption("Remote service over websocket", "websocket"),
					huh.NewOption("Remote service over server-sent events", "sse"),
				).
				Value(&provider),
		),
	).WithTheme(getTheme())
	if err := providerForm.Run(); err != nil {
		return err
	}

	var fields []huh.Field
	if provider == "websocket" || provider == "sse" {
		fields = append(fields, huh.NewInput().
			Title("Service URL").
			Description("Base URL of a running copresenter server, e.g. http://localhost:3000").
			Value(&url).
			Validate(requireText("URL")))
	} else {
		fields = append(fields, huh.NewInput().
			Title("Model").
			Description("Empty = provider default.").
			Value(&model))
	}
	fields = append(fields, huh.NewInput().
		Title("Style").
		Description("How the continuation should sound.").
		Placeholder("funny and whimsical").
		Value(&style))

	if err := huh.NewForm(huh.NewGroup(fields...)).WithTheme(getTheme()).Run(); err != nil {
		return err
	}

	cfg.Continuation.Provider = provider
	cfg.Continuation.Model = strings.TrimSpace(model)
	cfg.Continuation.Style = strings.TrimSpace(style)
	cfg.Continuation.URL = strings.TrimSpace(url)

	if config.EnvVarForProvider(provider) != "" {
		ensureProviderConfigured(cfg, provider)
	}
	return nil
}

func editSpeech(cfg *config.Config) error {
	backend := cfg.Speech.Backend
	voiceID := cfg.Speech.VoiceID
	modelID := cfg.Speech.ModelID
	player := strings.Join(cfg.Speech.Player, " ")
	synth := cfg.Speech.SynthCommand
	rate := strconv.FormatFloat(cfg.Speech.Rate, 'f', -1, 64)
	pitch := strconv.FormatFloat(cfg.Speech.Pitch, 'f', -1, 64)

	backendForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Speech Backend").
				Options(
					huh.NewOption("ElevenLabs clips played through a local player", "clip"),
					huh.NewOption("Local synthesizer (espeak-ng)", "local"),
				).
				Value(&backend),
		),
	).WithTheme(getTheme())
	if err := backendForm.Run(); err != nil {
		return err
	}

	var group *huh.Group
	if backend == "clip" {
		group = huh.NewGroup(
			huh.NewInput().Title("Voice ID").Value(&voiceID),
			huh.NewInput().Title("Model ID").Value(&modelID),
			huh.NewInput().
				Title("Player").
				Description("Command reading audio on stdin.").
				Value(&player).
				Validate(requireText("player command")),
		)
	} else {
		group = huh.NewGroup(
			huh.NewInput().Title("Synthesizer Command").Value(&synth).Validate(requireText("command")),
			huh.NewInput().
				Title("Rate").
				Description("Speaking rate multiplier, 0.1 to 10.").
				Value(&rate).
				Validate(validateFloatRange(0.1, 10)),
			huh.NewInput().
				Title("Pitch").
				Description("Pitch multiplier, 0 to 2.").
				Value(&pitch).
				Validate(validateFloatRange(0, 2)),
		)
	}
	if err := huh.NewForm(group).WithTheme(getTheme()).Run(); err != nil {
		return err
	}

	cfg.Speech.Backend = backend
	cfg.Speech.VoiceID = strings.TrimSpace(voiceID)
	cfg.Speech.ModelID = strings.TrimSpace(modelID)
	cfg.Speech.Player = strings.Fields(player)
	cfg.Speech.SynthCommand = strings.TrimSpace(synth)
	cfg.Speech.Rate, _ = strconv.ParseFloat(strings.TrimSpace(rate), 64)
	cfg.Speech.Pitch, _ = strconv.ParseFloat(strings.TrimSpace(pitch), 64)

	if backend == "clip" {
		ensureProviderConfigured(cfg, "elevenlabs")
	}
	return nil
}

func editServer(cfg *config.Config) error {
	addr := cfg.Server.Addr
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Description("Serves /ingest, /ws, /api/handwave and /api/tts.").
				Placeholder(":3000").
				Value(&addr).
				Validate(requireText("address")),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Server.Addr = strings.TrimSpace(addr)
	return nil
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	notifType := cfg.Notifications.Type
	if notifType == "" {
		notifType = "desktop"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable notifications?").
				Description("Session started, interrupted and speech input errors").
				Value(&enabled),
			huh.NewSelect[string]().
				Title("Notification Type").
				Options(
					huh.NewOption("Desktop notifications (notify-send)", "desktop"),
					huh.NewOption("Log to console only", "log"),
					huh.NewOption("None (silent)", "none"),
				).
				Value(&notifType),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = notifType
	return nil
}

// ensureProviderConfigured prompts for an API key when none is stored or
// exported for provider.
func ensureProviderConfigured(cfg *config.Config, provider string) {
	if cfg.APIKey(provider) != "" {
		return
	}
	apiKey, err := configureSingleProvider(cfg, provider)
	if err != nil || apiKey == "" {
		return
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]config.ProviderConfig)
	}
	cfg.Providers[provider] = config.ProviderConfig{APIKey: apiKey}
}
