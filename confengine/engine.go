// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package confengine

import (
	"github.com/packetd/httpcodec"
	"github.com/packetd/httpcodec/internal/engineopt"
	"github.com/packetd/httpcodec/logger"
)

// FileConfig is the on-disk shape this module accepts: engine knobs
// plus logging, unpacked via go-ucfg the way the teacher loads its own
// top-level config (cmd/root.go in the source tree this package was
// adapted from).
type FileConfig struct {
	MaxHeaderLength int            `config:"max-header-length"`
	PendingLimit    int            `config:"pending-limit"`
	TranscodeBody   bool           `config:"transcode-body"`
	Log             logger.Options `config:"log"`
}

// LoadEngineConfig reads path and reconciles it against the engine's
// documented defaults, returning both a ready-to-use httpcodec.Config
// and the logger.Options the caller may pass to logger.New.
func LoadEngineConfig(path string) (httpcodec.Config, logger.Options, error) {
	c, err := LoadConfigPath(path)
	if err != nil {
		return httpcodec.Config{}, logger.Options{}, err
	}
	return reconcile(c)
}

// LoadEngineConfigContent is LoadEngineConfig for in-memory YAML, e.g.
// a config embedded in a test or passed via an env var.
func LoadEngineConfigContent(b []byte) (httpcodec.Config, logger.Options, error) {
	c, err := LoadContent(b)
	if err != nil {
		return httpcodec.Config{}, logger.Options{}, err
	}
	return reconcile(c)
}

func reconcile(c *Config) (httpcodec.Config, logger.Options, error) {
	var fc FileConfig
	if err := c.Unpack(&fc); err != nil {
		return httpcodec.Config{}, logger.Options{}, err
	}

	opts := engineopt.NewOptions()
	if fc.MaxHeaderLength != 0 {
		opts.Merge("max-header-length", fc.MaxHeaderLength)
	}
	if fc.PendingLimit != 0 {
		opts.Merge("pending-limit", fc.PendingLimit)
	}
	opts.Merge("transcode-body", fc.TranscodeBody)
	settings := opts.Apply(engineopt.DefaultSettings())

	cfg := httpcodec.DefaultConfig()
	cfg.MaxHeaderLength = settings.MaxHeaderLength
	cfg.PendingLimit = settings.PendingLimit
	cfg.TranscodeBody = settings.TranscodeBody
	cfg.Logger = logger.New(fc.Log)

	return cfg, fc.Log, nil
}
