package app

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/adanyl0v/tasktracker/internal/config"
)

// MustReadEnv reads the config from the file named by CONFIG_FILE,
// or from the environment alone if it's unset.
func MustReadEnv() {
	MustReadConfig(config.NewReader(os.Getenv("CONFIG_FILE")))
}

func MustReadConfig(reader config.Reader) {
	cfg, err := reader.Read()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to read config")
		panic(err)
	}
	globalLogger.Info().
		Str("env", cfg.Env).
		Str("store_path", cfg.Store.Path).
		Msg("read config")

	config.SetGlobal(cfg)
}
