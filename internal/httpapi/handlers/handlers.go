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
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xzinc/IPL/pkg/common/structs"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/store"
	"github.com/xzinc/IPL/pkg/types"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 500
)

type Handlers struct {
	store store.Interface
}

func NewHandlers(dataStore store.Interface) *Handlers {
	return &Handlers{store: dataStore}
}

// statusFor maps data layer errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case types.IsFailoverError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrConfiguration), errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	log := logger.Logger(c.Request.Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Debug("request rejected")
	}
	_ = c.Error(err)
	c.JSON(status, structs.ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, structs.ErrorResponse{Error: msg})
}

func entityTypeParam(c *gin.Context) (types.EntityType, bool) {
	t, err := types.ParseEntityType(c.Param("type"))
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return t, true
}

func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultRecentLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxRecentLimit {
		badRequest(c, "limit must be between 1 and "+strconv.Itoa(maxRecentLimit))
		return 0, false
	}
	return limit, true
}

func (h *Handlers) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Status(c.Request.Context()))
}
