package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// DefaultLogFile is where the import log is written unless overridden
// with the -log-file flag.
const DefaultLogFile = "import.log"

type (
	Config struct {
		API
		Log
	}

	API struct {
		HostURL   string // Base URL of the eLabFTW v2 API, e.g. https://elab.example.org/api/v2
		Key       string // API key sent in the Authorization header
		VerifyTLS bool   // Verify the server certificate (off by default, like the source setup)
	}

	Log struct {
		File string
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("api_verify_tls", false)
	v.SetDefault("log_file", DefaultLogFile)

	return &Config{
		API: API{
			HostURL:   v.GetString("API_HOST_URL"),
			Key:       v.GetString("API_KEY"),
			VerifyTLS: v.GetBool("API_VERIFY_TLS"),
		},
		Log: Log{
			File: v.GetString("LOG_FILE"),
		},
	}
}

// Validate checks that the required environment variables were set.
// The returned error names the missing variable with an example value.
func (c *Config) Validate() error {
	if c.API.HostURL == "" {
		return fmt.Errorf("missing ENV var: API_HOST_URL. Example: https://elab.example.org/api/v2")
	}
	if c.API.Key == "" {
		return fmt.Errorf("missing ENV var: API_KEY. Example: 3-86e9f9...3f6f2e3")
	}
	return nil
}
