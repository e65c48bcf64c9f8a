package config

import (
	"errors"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Config carries every process-wide setting, including the two secrets. It is
// built once at startup and handed to the constructors that need it; nothing
// reads the environment after this point.
type Config struct {
	Port string

	DatabaseURL string

	// LicenseSecret keys the HMAC license derivation. SessionSecret signs
	// admin session tokens. Neither may appear in logs or responses.
	LicenseSecret []byte
	SessionSecret []byte

	AdminEmail    string
	AdminPassword string

	// AllowedPlans restricts accepted payment plans when non-empty.
	AllowedPlans []string

	AllowedOrigins []string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
}

func New() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	var missing *multierror.Error

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		missing = multierror.Append(missing, errors.New("DATABASE_URL environment variable is required"))
	}

	licenseSecret := os.Getenv("LICENSE_SECRET")
	if licenseSecret == "" {
		missing = multierror.Append(missing, errors.New("LICENSE_SECRET environment variable is required"))
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		missing = multierror.Append(missing, errors.New("SESSION_SECRET environment variable is required"))
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		missing = multierror.Append(missing, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD environment variables are required"))
	}

	if err := missing.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &Config{
		Port:           port,
		DatabaseURL:    dbURL,
		LicenseSecret:  []byte(licenseSecret),
		SessionSecret:  []byte(sessionSecret),
		AdminEmail:     adminEmail,
		AdminPassword:  adminPassword,
		AllowedPlans:   splitList(os.Getenv("LICENSE_PLANS")),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       os.Getenv("SMTP_PORT"),
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPass:       os.Getenv("SMTP_PASS"),
	}, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
