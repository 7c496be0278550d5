package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

type Config struct {
	TCP struct {
		Enabled bool   `json:"enabled"`
		Address string `json:"address"`
	} `json:"tcp"`

	TLS struct {
		Enabled bool   `json:"enabled"`
		Address string `json:"address"`
		Cert    string `json:"cert"`
		Key     string `json:"key"`
	} `json:"tls"`

	WS struct {
		Enabled     bool   `json:"enabled"`
		Address     string `json:"address"`
		CheckOrigin bool   `json:"check_origin"`
	} `json:"ws"`

	Store struct {
		Enabled bool   `json:"enabled"`
		Dir     string `json:"dir"`
	} `json:"store"`

	Log struct {
		File  string `json:"file"`
		Level string `json:"level"`
	} `json:"log"`
}

func New(fPath string) (*Config, error) {
	f, err := os.Open(fPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening config file")
	}

	defer f.Close()
	c := Config{}
	dec := json.NewDecoder(f)

	err = dec.Decode(&c)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	return &c, c.validate()
}

// Default returns a config for a plain TCP listener on the standard
// MQTT port, used when no config file is given.
func Default() *Config {
	c := Config{}
	c.TCP.Enabled = true
	c.TCP.Address = ":1883"
	return &c
}

func (c *Config) validate() error {
	if !c.TCP.Enabled && !c.TLS.Enabled && !c.WS.Enabled {
		return errors.New("at least one listener, TCP, TLS or WS, needs to be setup")
	}

	if c.TCP.Enabled {
		if !strings.Contains(c.TCP.Address, ":") {
			c.TCP.Address += ":1883" // if just ip/host or nothing specified
		}
	}

	if c.TLS.Enabled {
		if c.TLS.Cert == "" || c.TLS.Key == "" {
			return errors.New("invalid TLS certificate and/or private key file path setup")
		}

		if !strings.Contains(c.TLS.Address, ":") {
			c.TLS.Address += ":8883"
		}
	}

	if c.WS.Enabled {
		if !strings.Contains(c.WS.Address, ":") {
			c.WS.Address += ":80"
		}
	}

	if c.Store.Enabled && c.Store.Dir == "" {
		return errors.New("capture store enabled without a directory")
	}

	return nil
}
