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
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzinc/IPL/pkg/common/structs"
	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/store"
	"github.com/xzinc/IPL/pkg/types"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("team:x: %w", types.ErrNotFound), http.StatusNotFound},
		{&types.UnavailableError{Operation: "put"}, http.StatusServiceUnavailable},
		{types.ErrQuotaExceeded, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: bad rate", types.ErrConfiguration), http.StatusBadRequest},
		{fmt.Errorf("%w: key is required", store.ErrInvalidEntity), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestValidatePatch(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		valid bool
	}{
		{"learning rate", `{"learning_rate":"fast"}`, true},
		{"durations", `{"freshness_ttl":"12h","retention":"168h30m"}`, true},
		{"thresholds", `{"high_water_mark":0.9,"prune_threshold":0.8}`, true},
		{"empty patch", `{}`, false},
		{"unknown field", `{"backends":[]}`, false},
		{"unknown rate", `{"learning_rate":"glacial"}`, false},
		{"mark above one", `{"high_water_mark":1.5}`, false},
		{"bad duration", `{"freshness_ttl":"one day"}`, false},
		{"zero max", `{"max_per_user":0}`, false},
		{"not json", `learning_rate: fast`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePatch([]byte(tt.body))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPatchFunc(t *testing.T) {
	rate, ttl, enabled := "slow", "6h", false
	apply, err := patchFunc(structs.ConfigPatch{LearningRate: &rate, FreshnessTTL: &ttl, LearningEnabled: &enabled})
	require.NoError(t, err)

	cfg := &config.AppConfig{
		Learning:  config.Learning{Rate: config.LearningNormal, Enabled: true},
		Freshness: config.Freshness{TTL: 24 * time.Hour},
		Failover:  config.Failover{HighWaterMark: 0.95},
	}
	apply(cfg)
	assert.Equal(t, config.LearningSlow, cfg.Learning.Rate)
	assert.False(t, cfg.Learning.Enabled)
	assert.Equal(t, 6*time.Hour, cfg.Freshness.TTL)
	assert.Equal(t, 0.95, cfg.Failover.HighWaterMark, "fields absent from the patch are untouched")

	view := configView(cfg)
	assert.Equal(t, "6h0m0s", view.FreshnessTTL)
	assert.Equal(t, 500, view.MaxPerUser)
}
