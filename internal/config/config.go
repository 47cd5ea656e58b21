package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

const (
	RunModeLambda = "lambda"
	RunModeHTTP   = "http"
)

type Config struct {
	ServerAddress    string        `env:"SERVER_ADDRESS"`
	RunMode          string        `env:"RUN_MODE"`
	ParameterName    string        `env:"PARAMETER_NAME"`
	ParametersFile   string        `env:"PARAMETERS_FILE"`
	SSMRegion        string        `env:"SSM_REGION"`
	LogLevel         string        `env:"LOG_LEVEL"`
	LogFile          string        `env:"LOG_FILE"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT"`
	KayakoBaseURL    string        `env:"KAYAKO_BASE_URL"`
	KayakoShimURL    string        `env:"KAYAKO_SHIM_URL"`
	KayakoRetryWait  time.Duration `env:"KAYAKO_RETRY_WAIT"`
	OtelEnabled      bool          `env:"OTEL_ENABLED"`
	OtelEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func ParseFlags() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	envServerAddress := cfg.ServerAddress
	envRunMode := cfg.RunMode
	envParameterName := cfg.ParameterName
	envParametersFile := cfg.ParametersFile
	envLogLevel := cfg.LogLevel

	flag.StringVar(&cfg.ServerAddress, "a", getDefaultServerAddress(), "Address of the HTTP server")
	flag.StringVar(&cfg.RunMode, "m", RunModeLambda, "Run mode: lambda or http")
	flag.StringVar(&cfg.ParameterName, "p", getDefaultParameterName(), "Name of the SSM parameter holding the configuration")
	flag.StringVar(&cfg.ParametersFile, "f", "", "Local JSON file used instead of SSM")
	flag.StringVar(&cfg.LogLevel, "l", "info", "Log level")

	flag.Parse()

	if envServerAddress != "" {
		cfg.ServerAddress = envServerAddress
	}
	if envRunMode != "" {
		cfg.RunMode = envRunMode
	}
	if envParameterName != "" {
		cfg.ParameterName = envParameterName
	}
	if envParametersFile != "" {
		cfg.ParametersFile = envParametersFile
	}
	if envLogLevel != "" {
		cfg.LogLevel = envLogLevel
	}

	cfg.applyDefaultValues()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RunMode != RunModeLambda && c.RunMode != RunModeHTTP {
		return fmt.Errorf("unknown run mode %q: must be %s or %s", c.RunMode, RunModeLambda, RunModeHTTP)
	}
	if c.RunMode == RunModeHTTP && c.ServerAddress == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.ParametersFile == "" && c.ParameterName == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}
	if c.DBConnectTimeout < 0 || c.KayakoRetryWait < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}

func (c *Config) applyDefaultValues() {
	if c.ServerAddress == "" {
		c.ServerAddress = getDefaultServerAddress()
	}
	if c.RunMode == "" {
		c.RunMode = RunModeLambda
	}
	if c.ParameterName == "" {
		c.ParameterName = getDefaultParameterName()
	}
	if c.SSMRegion == "" {
		c.SSMRegion = "us-east-1"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DBConnectTimeout == 0 {
		c.DBConnectTimeout = 10 * time.Second
	}
	if c.KayakoRetryWait == 0 {
		c.KayakoRetryWait = 15 * time.Second
	}
	if c.OtelEndpoint == "" {
		c.OtelEndpoint = "localhost:4318"
	}
}

func getDefaultServerAddress() string {
	return "localhost:8080"
}

func getDefaultParameterName() string {
	return "CloudsenseElasticCancelMACDRequest_parameters"
}
