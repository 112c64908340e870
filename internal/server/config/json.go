package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/snapvault/snapvault/internal/flagx"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// Duration fields are expressed in minutes; after unmarshalling, values are
// copied into the runtime Config which uses time.Duration.
type JsonConfig struct {
	EndpointAddr                string `json:"endpoint_addr"`
	DatabaseDSN                 string `json:"database_dsn"`
	SecretKey                   string `json:"secret_key"`
	AccessTokenValidityMinutes  int    `json:"access_token_validity_minutes"`
	RefreshTokenValidityMinutes int    `json:"refresh_token_validity_minutes"`
	S3AccessKey                 string `json:"s3_access_key"`
	S3SecretKey                 string `json:"s3_secret_key"`
	S3Bucket                    string `json:"s3_bucket"`
	S3Region                    string `json:"s3_region"`
	S3BaseEndpoint              string `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the -c
// or -config flags. When neither flag is set, nothing is loaded. Empty
// fields in the file leave the current Config values untouched. An
// unreadable or invalid file panics: starting with half-applied
// configuration hides real deployment mistakes.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidityMinutes > 0 {
		config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityMinutes) * time.Minute
	}
	if c.RefreshTokenValidityMinutes > 0 {
		config.RefreshTokenValidityDuration = time.Duration(c.RefreshTokenValidityMinutes) * time.Minute
	}
	if c.S3AccessKey != "" {
		config.S3AccessKey = c.S3AccessKey
	}
	if c.S3SecretKey != "" {
		config.S3SecretKey = c.S3SecretKey
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
