package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/raine/dermadict/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/term"
)

const defaultCachePath = "analysis-cache.db"

var (
	telegramAPIURL = "https://api.telegram.org"
	geminiAPIURL   = "https://generativelanguage.googleapis.com"
)

var validationClient = resty.New().SetTimeout(10 * time.Second)

// envOrder fixes the order keys are written to the config file.
var envOrder = []string{
	"AI_PROVIDER",
	"AI_GATEWAY_API_KEY",
	"GEMINI_API_KEY",
	"TELEGRAM_BOT_TOKEN",
	"ANALYSIS_CACHE_PATH",
	"ANALYSIS_CACHE_KEY",
}

// getConfigFilePath returns the full path to the config file, creating its
// directory if needed.
func getConfigFilePath() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, config.AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, config.EnvFileName), nil
}

// isInteractiveTerminal returns true if both stdin and stdout are TTYs.
func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// runSetupWizard collects the AI credential and optional features, then
// writes them to the config file. Returns true if the server should start.
func runSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("DermaDict AI - First-time Setup"))
	fmt.Println()

	var provider, apiKey, botToken string
	var enableCache bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("AI provider").
				Options(
					huh.NewOption("Chat-completions gateway", config.ProviderGateway),
					huh.NewOption("Google Gemini", config.ProviderGemini),
				).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API Key").
				Description("Gateway bearer token, or a Gemini key from https://aistudio.google.com/apikey").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					if provider == config.ProviderGemini {
						return validateGeminiKey(s)
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram Bot Token (optional)").
				Description("Leave empty to run without the Telegram bot").
				Value(&botToken).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					return validateTelegramToken(s)
				}),
			huh.NewConfirm().
				Title("Cache analysis results?").
				Description("Stores encrypted results in " + defaultCachePath).
				Value(&enableCache),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := setupValues(provider, apiKey, botToken, enableCache)

	configPath, err := getConfigFilePath()
	if err == nil {
		err = writeEnvFile(configPath, values)
	}
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		waitOnWindows()
		return false
	}

	// Set values in current process
	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()
	fmt.Println("Starting server...")
	fmt.Println()

	return true
}

// setupValues maps wizard answers onto environment variables.
func setupValues(provider, apiKey, botToken string, enableCache bool) map[string]string {
	values := map[string]string{"AI_PROVIDER": provider}
	if provider == config.ProviderGemini {
		values["GEMINI_API_KEY"] = apiKey
	} else {
		values["AI_GATEWAY_API_KEY"] = apiKey
	}
	if botToken != "" {
		values["TELEGRAM_BOT_TOKEN"] = botToken
	}
	if enableCache {
		values["ANALYSIS_CACHE_PATH"] = defaultCachePath
		values["ANALYSIS_CACHE_KEY"] = generateCacheKey()
	}
	return values
}

func generateCacheKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based if crypto/rand fails (unlikely)
		return fmt.Sprintf("dermadict-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

// validateTelegramToken validates a Telegram bot token by calling getMe.
func validateTelegramToken(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := validationClient.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/bot%s/getMe", telegramAPIURL, token))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("connection timed out - check your internet")
		}
		return errors.New("connection failed - check your internet")
	}

	body := gjson.ParseBytes(resp.Body())
	if !body.Get("ok").Bool() {
		if desc := body.Get("description").String(); desc != "" {
			return errors.New(desc)
		}
		return errors.New("token rejected by Telegram")
	}

	return nil
}

// validateGeminiKey validates a Gemini API key with the lightweight models
// list endpoint.
func validateGeminiKey(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := validationClient.R().
		SetContext(ctx).
		SetQueryParam("key", key).
		Get(geminiAPIURL + "/v1beta/models")
	if err != nil {
		return errors.New("connection failed - check your internet")
	}

	switch resp.StatusCode() {
	case 200:
		return nil
	case 400, 401, 403:
		if msg := gjson.GetBytes(resp.Body(), "error.message").String(); msg != "" {
			return errors.New(msg)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", resp.StatusCode())
	default:
		return fmt.Errorf("unexpected response (HTTP %d)", resp.StatusCode())
	}
}

// writeEnvFile writes values to path with 0600 permissions since the file
// contains secrets.
func writeEnvFile(path string, values map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	// Quote values to handle special characters
	for _, key := range envOrder {
		if val, ok := values[key]; ok {
			if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
	}

	return nil
}

// waitOnWindows pauses so users can read errors before the console closes.
func waitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}

// fatalWithWait logs a fatal error and waits on Windows before exiting.
func fatalWithWait(format string, args ...interface{}) {
	log.Error().Msgf(format, args...)
	waitOnWindows()
	os.Exit(1)
}
