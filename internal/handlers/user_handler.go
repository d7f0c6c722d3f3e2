package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realty/internal/services"
)

type UserHandler struct {
	users services.UserService
	log   *zap.Logger
}

func NewUserHandler(users services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// @Summary      Список пользователей
// @Tags         Admin
// @Produce      json
// @Param        limit   query     int  false  "Page size"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   models.User
// @Failure      403     {object}  map[string]string
// @Router       /api/admin/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
