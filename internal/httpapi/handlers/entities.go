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

	"github.com/gin-gonic/gin"

	"github.com/xzinc/IPL/pkg/common/structs"
	"github.com/xzinc/IPL/pkg/types"
)

func (h *Handlers) GetEntity(c *gin.Context) {
	t, ok := entityTypeParam(c)
	if !ok {
		return
	}

	e, fromCache, err := h.store.ReadEntity(c.Request.Context(), t, c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, structs.EntityResponse{Entity: e, FromCache: fromCache})
}

// PutEntity writes an entity. A write that reached a backend but not the
// reference cache is still a success and carries a warning.
func (h *Handlers) PutEntity(c *gin.Context) {
	t, ok := entityTypeParam(c)
	if !ok {
		return
	}

	var req structs.EntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid entity body: "+err.Error())
		return
	}

	e := req.ToEntity(t, c.Param("key"))
	e.Normalize()

	resp := structs.EntityResponse{Entity: e}
	if err := h.store.WriteEntity(c.Request.Context(), e); err != nil {
		var partial *types.PartialWriteFailure
		if !errors.As(err, &partial) {
			respondError(c, err)
			return
		}
		resp.Warning = partial.Error()
	}
	c.JSON(http.StatusOK, resp)
}
