package plugin

import (
	"encoding/json"
	"fmt"
)

// Config is the blob handed to a plugin invocation: the source's
// non-secret settings from the config file plus the credential resolved
// from the keyring for this one call. It crosses the sandbox boundary as
// JSON and is never retained between invocations.
type Config struct {
	Settings   map[string]string `json:"settings"`
	Credential string            `json:"credential,omitempty"`
}

// Marshal encodes the config for one invocation. A nil settings map is
// normalized to an empty object.
func (c Config) Marshal() ([]byte, error) {
	if c.Settings == nil {
		c.Settings = map[string]string{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling plugin config: %w", err)
	}
	return data, nil
}

// ParseConfig decodes a config blob inside a plugin.
func ParseConfig(raw []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("parsing plugin config: %w", err)
	}
	if c.Settings == nil {
		c.Settings = map[string]string{}
	}
	return c, nil
}
