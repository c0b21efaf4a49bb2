package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":3000"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/overlays.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// RedisURL enables the cross-instance fan-out relay when set.
	RedisURL       string        `env:"REDIS_URL"`
	FanoutCapacity int           `env:"FANOUT_CAPACITY" envDefault:"32"`
	SSEKeepAlive   time.Duration `env:"SSE_KEEPALIVE" envDefault:"15s"`
	// WSOrigins lists origin hosts, besides our own, that may open the
	// overlay websocket, e.g. "*.vercel.app,localhost:*".
	WSOrigins []string `env:"WS_ORIGIN_PATTERNS" envSeparator:","`

	StartGG StartGG

	CookieKey    string `env:"COOKIE_SIGNING_KEY,required,notEmpty"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false"`

	DiscordBotToken          string `env:"DISCORD_BOT_TOKEN"`
	OmegaStrikersIdentity    string `env:"OMEGASTRIKERS_IDENTITY_FILE"`
	OmegaStrikersAPIEndpoint string `env:"OMEGASTRIKERS_API_URL" envDefault:"https://prometheus-proxy.odysseyinteractive.gg/api/v1"`
}

type StartGG struct {
	ClientID     string `env:"STARTGG_OAUTH_CLIENT_ID,required"`
	ClientSecret string `env:"STARTGG_OAUTH_CLIENT_SECRET,required"`
	RedirectURI  string `env:"STARTGG_REDIRECT_URI" envDefault:"http://127.0.0.1:3000/oauth/startgg_callback"`
	GraphQLURL   string `env:"STARTGG_GRAPHQL_URL" envDefault:"https://api.start.gg/gql/alpha"`
	AuthorizeURL string `env:"STARTGG_AUTHORIZE_URL" envDefault:"https://start.gg/oauth/authorize"`
	TokenURL     string `env:"STARTGG_TOKEN_URL" envDefault:"https://api.start.gg/oauth/access_token"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.FanoutCapacity <= 0 {
		return nil, fmt.Errorf("FANOUT_CAPACITY must be positive, got %d", cfg.FanoutCapacity)
	}
	return &cfg, nil
}
