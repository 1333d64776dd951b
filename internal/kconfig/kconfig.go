// Copyright © 2018 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kconfig holds operator-tunable settings for the koushou CLI.
//
// None of the invariants in spec.md §8 depend on this file existing. The
// CLI loads it at startup and fails on a malformed file, but no command
// reads the loaded values: the --root flag default and the HTTP clients do
// not take their values from it.
package kconfig

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Settings is the decoded shape of /etc/koushou/settings.toml.
type Settings struct {
	Core  coreSection  `toml:"core"`
	Fetch fetchSection `toml:"fetch"`

	filename string
}

type coreSection struct {
	DefaultRoot string `toml:"default_root"`
}

type fetchSection struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// DefaultSettingsPath is where koushou looks for its settings file absent
// an explicit override.
const DefaultSettingsPath = "/etc/koushou/settings.toml"

// LoadDefaults returns Settings populated with this tool's built-in defaults.
func LoadDefaults() Settings {
	return Settings{
		Core:  coreSection{DefaultRoot: "/"},
		Fetch: fetchSection{TimeoutSeconds: 60},
	}
}

// Load reads settings from path, falling back to defaults for any field
// left unset and to an entirely-default Settings if the file is absent.
func Load(path string) (Settings, error) {
	s := LoadDefaults()
	s.filename = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Settings{}, errors.Wrapf(err, "parsing settings file %s", path)
	}
	return s, nil
}

// HTTPTimeout returns the configured fetch timeout as a time.Duration.
func (s Settings) HTTPTimeout() time.Duration {
	if s.Fetch.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.Fetch.TimeoutSeconds) * time.Second
}
