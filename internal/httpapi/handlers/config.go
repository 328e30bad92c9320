/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"

	"github.com/xzinc/IPL/pkg/common/structs"
	"github.com/xzinc/IPL/pkg/config"
)

const maxPatchBytes = 64 << 10

const configPatchSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "minProperties": 1,
  "properties": {
    "learning_rate":    {"type": "string", "enum": ["slow", "normal", "fast"]},
    "learning_enabled": {"type": "boolean"},
    "high_water_mark":  {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
    "prune_threshold":  {"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1},
    "auto_failover":    {"type": "boolean"},
    "failback":         {"type": "boolean"},
    "freshness_ttl":    {"type": "string", "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))+$"},
    "max_per_user":     {"type": "integer", "minimum": 1},
    "retention":        {"type": "string", "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))+$"}
  }
}`

var loadPatchSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(configPatchSchema))
})

func configView(cfg *config.AppConfig) structs.ConfigView {
	profile := cfg.LearningProfile()
	return structs.ConfigView{
		LearningRate:    cfg.Learning.Rate,
		LearningEnabled: cfg.Learning.Enabled,
		HighWaterMark:   cfg.Failover.HighWaterMark,
		PruneThreshold:  cfg.Failover.PruneThreshold,
		AutoFailover:    cfg.Failover.AutoFailover,
		Failback:        cfg.Failover.Failback,
		FreshnessTTL:    cfg.Freshness.TTL.String(),
		MaxPerUser:      profile.MaxPerUser,
		Retention:       profile.Retention.String(),
	}
}

func (h *Handlers) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, configView(h.store.Config()))
}

// PatchConfig validates the body against the patch schema, then applies the
// change through the store, which rejects combinations that fail config
// validation (a prune threshold above the high water mark, for one).
func (h *Handlers) PatchConfig(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPatchBytes))
	if err != nil {
		badRequest(c, "failed to read body")
		return
	}
	if err := validatePatch(body); err != nil {
		badRequest(c, err.Error())
		return
	}

	var patch structs.ConfigPatch
	if err := json.Unmarshal(body, &patch); err != nil {
		badRequest(c, "invalid config patch: "+err.Error())
		return
	}
	apply, err := patchFunc(patch)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	next, err := h.store.UpdateConfig(c.Request.Context(), apply)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, configView(next))
}

func validatePatch(body []byte) error {
	schema, err := loadPatchSchema()
	if err != nil {
		return fmt.Errorf("config patch schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("config patch is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid config patch: %s", strings.Join(msgs, "; "))
}

func patchFunc(p structs.ConfigPatch) (func(*config.AppConfig), error) {
	var ttl, retention time.Duration
	var err error
	if p.FreshnessTTL != nil {
		if ttl, err = time.ParseDuration(*p.FreshnessTTL); err != nil {
			return nil, fmt.Errorf("freshness_ttl: %w", err)
		}
	}
	if p.Retention != nil {
		if retention, err = time.ParseDuration(*p.Retention); err != nil {
			return nil, fmt.Errorf("retention: %w", err)
		}
	}

	return func(cfg *config.AppConfig) {
		if p.LearningRate != nil {
			cfg.Learning.Rate = *p.LearningRate
		}
		if p.LearningEnabled != nil {
			cfg.Learning.Enabled = *p.LearningEnabled
		}
		if p.HighWaterMark != nil {
			cfg.Failover.HighWaterMark = *p.HighWaterMark
		}
		if p.PruneThreshold != nil {
			cfg.Failover.PruneThreshold = *p.PruneThreshold
		}
		if p.AutoFailover != nil {
			cfg.Failover.AutoFailover = *p.AutoFailover
		}
		if p.Failback != nil {
			cfg.Failover.Failback = *p.Failback
		}
		if p.FreshnessTTL != nil {
			cfg.Freshness.TTL = ttl
		}
		if p.MaxPerUser != nil {
			cfg.Interactions.MaxPerUser = *p.MaxPerUser
		}
		if p.Retention != nil {
			cfg.Interactions.Retention = retention
		}
	}, nil
}
