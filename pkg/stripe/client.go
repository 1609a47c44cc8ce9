package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	appName = "projectmarket-backend"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// keyPrefixes lists the secret and restricted key prefixes accepted per environment.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test", "rk_test"},
	liveEnv: {"sk_live", "rk_live"},
}

// Client is the marketplace's handle on the payment gateway: payment intents
// for accepted offers plus webhook signature verification.
type Client struct {
	environment   string
	signingSecret string
}

type settings struct {
	environment   string
	apiKey        string
	signingSecret string
}

func loadSettings(cfg config.StripeConfig) (settings, error) {
	env := strings.TrimSpace(strings.ToLower(cfg.Environment()))
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return settings{}, errInvalidStripeEnv
	}

	s := settings{
		environment:   env,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		signingSecret: strings.TrimSpace(cfg.Secret),
	}
	if s.apiKey == "" {
		return settings{}, errAPIKeyRequired
	}
	if s.signingSecret == "" {
		return settings{}, errSecretRequired
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(s.apiKey, prefix) {
			return s, nil
		}
	}
	return settings{}, fmt.Errorf("stripe environment %q requires a key starting with %s", env, strings.Join(prefixes, " or "))
}

// NewClient configures the gateway once at startup. The API key is installed
// process-wide because the resource packages read it from there.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	s, err := loadSettings(cfg)
	if err != nil {
		return nil, err
	}

	stripe.Key = s.apiKey
	stripe.SetAppInfo(&stripe.AppInfo{Name: appName})

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", s.environment), "stripe client initialized")
	}
	return &Client{
		environment:   s.environment,
		signingSecret: s.signingSecret,
	}, nil
}

// Environment reports the normalized gateway environment (test or live).
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}
