package ticketing

import (
	"encoding/base64"

	"github.com/caarlos0/env/v6"
	"go.uber.org/zap"
)

// Credentials are read from the parameter environment. The password is
// stored base64 encoded.
type Credentials struct {
	Email    string `env:"kayako_email"`
	Password string `env:"kayako_password"`
}

func (c Credentials) Complete() bool {
	return c.Email != "" && c.Password != ""
}

// LoadCredentials parses the credentials out of environment and decodes the
// password. A password that does not decode is logged and left empty.
func LoadCredentials(environment map[string]string, logger *zap.Logger) Credentials {
	var creds Credentials
	if err := env.Parse(&creds, env.Options{Environment: environment}); err != nil {
		logger.Error("Failed to parse ticketing credentials", zap.Error(err))
		return Credentials{}
	}

	if creds.Password == "" {
		logger.Warn("No ticketing password found in parameters")
		return creds
	}

	decoded, err := base64.StdEncoding.DecodeString(creds.Password)
	if err != nil {
		logger.Error("Password decode error", zap.Error(err))
		creds.Password = ""
		return creds
	}
	creds.Password = string(decoded)

	logger.Debug("Ticketing credentials loaded",
		zap.String("email", creds.Email),
		zap.Int("password_length", len(creds.Password)))

	return creds
}
