// Package config holds the bot's runtime configuration parsed from the
// environment.
package config

import (
	"github.com/jlaasanen/dealflow/internal/envstruct"
	"github.com/jlaasanen/dealflow/internal/errors"
)

// Config carries every knob the daemon needs. Credentials come without
// defaults so a misconfigured deployment fails at startup instead of at the
// first external call.
type Config struct {
	// TelegramBotToken authenticates against the Bot API.
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	// OpenAIAPIKey authenticates the narrative generator.
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	// SQLiteURL is the path to the SQLite database file or ":memory:".
	SQLiteURL string `env:"SQLITE_URL" envDefault:"./dealflow.sqlite"`
	// AdminUsername is the single privileged operator identity, without the
	// leading '@'.
	AdminUsername string `env:"ADMIN_USERNAME"`
	// GroupChatIDs lists the distribution chats that receive broadcast polls
	// for approved founder pitches, e.g. "-123456789,-987654321".
	GroupChatIDs []string `env:"GROUP_CHAT_IDS" envDefault:""`
	// ScoreThreshold gates unprivileged submissions.
	ScoreThreshold float64 `env:"SCORE_THRESHOLD" envDefault:"7"`
	// PprofPort is the localhost port for the pprof listener.
	PprofPort string `env:"PPROF_PORT" envDefault:":6060"`
}

// Parse populates a Config from lookupEnv, which has the signature of
// [os.LookupEnv].
func Parse(lookupEnv func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return Config{}, errors.Wrap(err, "populate config from environment")
	}
	return cfg, nil
}
