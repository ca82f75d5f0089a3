package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/mkalinin/classhub/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultBaseURL      = "http://localhost:8000"
	defaultTokenIssuer  = "classhub"
	defaultSMTPPort     = 587

	defaultAccessTTL       = 15 * time.Minute
	defaultRefreshTTL      = 30 * 24 * time.Hour
	defaultActivationTTL   = 24 * time.Hour
	defaultResetPwdTTL     = time.Hour
	defaultReset2FATTL     = time.Hour
	defaultConfirmEmailTTL = 24 * time.Hour
	defaultCourseJoinTTL   = 24 * time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the classhub service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// Public URL the emailed links point at
	BaseURL string

	// Issuer claim put on signed tokens, also shown in authenticator apps
	TokenIssuer string

	// Lifetime per token mode
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	ActivationTTL   time.Duration
	ResetPwdTTL     time.Duration
	Reset2FATTL     time.Duration
	ConfirmEmailTTL time.Duration
	CourseJoinTTL   time.Duration

	// Outgoing mail settings
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		BaseURL:     defaultBaseURL,
		TokenIssuer: defaultTokenIssuer,

		AccessTTL:       defaultAccessTTL,
		RefreshTTL:      defaultRefreshTTL,
		ActivationTTL:   defaultActivationTTL,
		ResetPwdTTL:     defaultResetPwdTTL,
		Reset2FATTL:     defaultReset2FATTL,
		ConfirmEmailTTL: defaultConfirmEmailTTL,
		CourseJoinTTL:   defaultCourseJoinTTL,

		SMTPPort: defaultSMTPPort,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			i, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = i
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":  setString(&c.ListenAddr),
		"DATABASE_URI": setString(&c.DatabaseDSN),
		"SECRET_KEY":   setString(&c.SecretKey),
		"LOG_LEVEL":    setString(&c.LogLevel),
		"ENVIRONMENT":  setString(&c.Environment),
		"BASE_URL":     setString(&c.BaseURL),
		"TOKEN_ISSUER": setString(&c.TokenIssuer),

		"ACCESS_TOKEN_TTL":         setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL":        setDuration(&c.RefreshTTL),
		"ACTIVATION_TOKEN_TTL":     setDuration(&c.ActivationTTL),
		"RESET_PASSWORD_TOKEN_TTL": setDuration(&c.ResetPwdTTL),
		"RESET_2FA_TOKEN_TTL":      setDuration(&c.Reset2FATTL),
		"CONFIRM_EMAIL_TOKEN_TTL":  setDuration(&c.ConfirmEmailTTL),
		"COURSE_JOIN_TOKEN_TTL":    setDuration(&c.CourseJoinTTL),

		"SMTP_HOST":     setString(&c.SMTPHost),
		"SMTP_PORT":     setInt(&c.SMTPPort),
		"SMTP_USERNAME": setString(&c.SMTPUsername),
		"SMTP_PASSWORD": setString(&c.SMTPPassword),
		"SMTP_FROM":     setString(&c.SMTPFrom),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("classhub", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.BaseURL, "base-url", "b", c.BaseURL, "Public base URL used in emailed links")
	fs.StringVar(&c.TokenIssuer, "token-issuer", c.TokenIssuer, "Issuer claim for signed tokens")

	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.DurationVar(&c.ActivationTTL, "activation-ttl", c.ActivationTTL, "Account activation link lifetime")
	fs.DurationVar(&c.ResetPwdTTL, "reset-password-ttl", c.ResetPwdTTL, "Password reset link lifetime")
	fs.DurationVar(&c.Reset2FATTL, "reset-2fa-ttl", c.Reset2FATTL, "Two-factor reset link lifetime")
	fs.DurationVar(&c.ConfirmEmailTTL, "confirm-email-ttl", c.ConfirmEmailTTL, "Email confirmation link lifetime")
	fs.DurationVar(&c.CourseJoinTTL, "course-join-ttl", c.CourseJoinTTL, "Course join link lifetime")

	fs.StringVar(&c.SMTPHost, "smtp-host", c.SMTPHost, "SMTP server host")
	fs.IntVar(&c.SMTPPort, "smtp-port", c.SMTPPort, "SMTP server port")
	fs.StringVar(&c.SMTPUsername, "smtp-username", c.SMTPUsername, "SMTP username")
	fs.StringVar(&c.SMTPPassword, "smtp-password", c.SMTPPassword, "SMTP password")
	fs.StringVar(&c.SMTPFrom, "smtp-from", c.SMTPFrom, "From address for outgoing mail")

	return fs.Parse(args)
}
