package parameters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mmeshcher/macd-cancel/internal/models"
)

// ConfigurationError reports a missing or unusable database configuration.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

type regionConfig struct {
	DBName   string `json:"sm_db_name"`
	User     string `json:"sm_db_user"`
	Password string `json:"sm_db_password"`
	Host     string `json:"sm_db_host"`
	Port     port   `json:"sm_db_port"`
}

// port accepts either a JSON number or a numeric string.
type port int

func (p *port) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*p = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("sm_db_port: %w", err)
		}
		*p = port(n)
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("sm_db_port: %w", err)
	}
	*p = port(n)
	return nil
}

// DatabaseConfig resolves the database profile for region. The region key is
// matched case-insensitively by upper-casing it.
func (p *Parameters) DatabaseConfig(region string) (models.DatabaseProfile, error) {
	region = strings.ToUpper(region)

	raw, ok := p.entries[DatabasesKey]
	if !ok || isEmptyJSON(raw) {
		return models.DatabaseProfile{}, configErrorf("No databases configuration found in parameters")
	}

	databases, err := decodeDatabases(raw)
	if err != nil {
		return models.DatabaseProfile{}, configErrorf("Invalid databases configuration: %s", err)
	}

	regionRaw, ok := databases[region]
	if !ok {
		available := make([]string, 0, len(databases))
		for k := range databases {
			available = append(available, k)
		}
		sort.Strings(available)
		return models.DatabaseProfile{}, configErrorf("Unsupported database region: %s. Supported regions: %s",
			region, strings.Join(available, ", "))
	}

	var rc regionConfig
	if err := json.Unmarshal(regionRaw, &rc); err != nil {
		return models.DatabaseProfile{}, configErrorf("Invalid databases configuration: %s", err)
	}

	profile := models.DatabaseProfile{
		DBName:   rc.DBName,
		User:     rc.User,
		Password: rc.Password,
		Host:     rc.Host,
		Port:     int(rc.Port),
	}
	if profile.Port == 0 {
		profile.Port = models.DefaultDatabasePort
	}

	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"dbname", profile.DBName},
		{"user", profile.User},
		{"password", profile.Password},
		{"host", profile.Host},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return models.DatabaseProfile{}, configErrorf("Missing database configuration parameters for %s: %s",
			region, strings.Join(missing, ", "))
	}

	return profile, nil
}

// decodeDatabases accepts the databases entry either as an object or as a
// string holding a JSON-encoded object.
func decodeDatabases(raw json.RawMessage) (map[string]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		raw = json.RawMessage(encoded)
	}

	var databases map[string]json.RawMessage
	if err := json.Unmarshal(raw, &databases); err != nil {
		return nil, err
	}
	return databases, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", `""`:
		return true
	}
	return false
}
