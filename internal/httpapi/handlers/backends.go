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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xzinc/IPL/pkg/common/structs"
)

func (h *Handlers) GetBackends(c *gin.Context) {
	report := h.store.Status(c.Request.Context())
	c.JSON(http.StatusOK, structs.BackendsResponse{
		Active:   report.Active,
		Backends: report.Backends,
	})
}

// ActivateBackend makes the named backend active until the next automatic switch
func (h *Handlers) ActivateBackend(c *gin.Context) {
	name := c.Param("name")
	if err := h.store.ForceSwitch(c.Request.Context(), name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, structs.SwitchResponse{Active: name})
}

func (h *Handlers) CheckBackends(c *gin.Context) {
	c.JSON(http.StatusOK, structs.CheckResponse{Results: h.store.CheckBackends(c.Request.Context())})
}
