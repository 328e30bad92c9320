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
	"github.com/xzinc/IPL/pkg/types"
)

// RecordInteraction queues an interaction and answers before it is written
func (h *Handlers) RecordInteraction(c *gin.Context) {
	var req structs.InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid interaction body: "+err.Error())
		return
	}
	switch types.ChatType(req.ChatType) {
	case "", types.ChatPrivate, types.ChatGroup:
	default:
		badRequest(c, "chat_type must be private or group")
		return
	}

	h.store.RecordInteraction(c.Request.Context(), req.ToInteraction())
	c.Status(http.StatusAccepted)
}

func (h *Handlers) GetInteractions(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	userID := c.Param("user")

	items, err := h.store.RecentInteractions(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []types.Interaction{}
	}
	c.JSON(http.StatusOK, structs.InteractionsResponse{UserID: userID, Interactions: items})
}

// PruneInteractions prunes every reachable backend now. A backend that fails
// does not undo removals on the others.
func (h *Handlers) PruneInteractions(c *gin.Context) {
	result, err := h.store.PruneNow(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, structs.PruneResponse{
		Removed:    result.Removed,
		PerBackend: result.PerBackend,
		Before:     result.Before,
		MaxPerUser: result.MaxPerUser,
	})
}
