package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/robalobadob/wordduel/internal/game"
)

// Config is the replica process configuration, read from the environment
// (after godotenv has loaded any .env file).
type Config struct {
	Port      string `env:"PORT" envDefault:"5175"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY"`

	// ReplicaID is this replica's identity and the base URL peers post to.
	ReplicaID    string `env:"REPLICA_ID"`
	DatabasePath string `env:"DB_PATH" envDefault:"./data/wordduel.db"`

	PeerSecret  string        `env:"PEER_SECRET" envDefault:"dev_peer_secret_change_me"`
	OutboxSize  int           `env:"OUTBOX_SIZE" envDefault:"256"`
	PeerTimeout time.Duration `env:"PEER_TIMEOUT" envDefault:"5s"`

	JWTSecret            string        `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpires           time.Duration `env:"JWT_EXPIRES" envDefault:"336h"`
	CookieName           string        `env:"COOKIE_NAME" envDefault:"wordduel_token"`
	CookieSecure         bool          `env:"COOKIE_SECURE"`
	ClientOrigin         string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	OperatorPasswordHash string        `env:"OPERATOR_PASSWORD_HASH"`

	LetterSetsFile string `env:"LETTER_SETS_FILE"`
}

// Load parses the environment and fills derived defaults.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if c.ReplicaID == "" {
		c.ReplicaID = "http://localhost:" + c.Port
	}
	c.ReplicaID = game.NormalizeIdentity(c.ReplicaID)
	return c, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// InMemory reports whether DB_PATH asks for a throwaway in-memory database.
func (c Config) InMemory() bool { return c.DatabasePath == ":memory:" }

// OperatorAuth reports whether command routes require an operator session.
func (c Config) OperatorAuth() bool { return c.OperatorPasswordHash != "" }
