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

func (h *Handlers) RefreshReference(c *gin.Context) {
	t, ok := entityTypeParam(c)
	if !ok {
		return
	}

	n, err := h.store.RefreshReference(c.Request.Context(), t)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, structs.RefreshResponse{Type: t, Count: n})
}

func (h *Handlers) InvalidateReference(c *gin.Context) {
	t, ok := entityTypeParam(c)
	if !ok {
		return
	}

	if err := h.store.InvalidateReference(t); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
