package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flenzi/company-service/internal/domain"
	"github.com/flenzi/company-service/internal/service"
	"github.com/flenzi/company-service/pkg/response"
)

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	users service.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes registers the user routes under rg.
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	{
		users.POST("", h.Create)
		users.GET("", h.List)
		users.GET("/active", h.ListActive)
		users.GET("/:id", h.Get)
		users.PUT("/:id", h.Update)
		users.DELETE("/:id", h.Delete)
	}
}

func (h *UserHandler) Create(c *gin.Context) {
	var req domain.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.users.CreateUser(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err, "create user")
		return
	}

	response.Created(c, result)
}

// List returns every user, or the single user owning ?email=.
func (h *UserHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if email := c.Query("email"); email != "" {
		result, err := h.users.GetUserByEmail(ctx, email)
		if err != nil {
			writeError(c, err, "get user by email")
			return
		}
		response.Success(c, result)
		return
	}

	result, err := h.users.ListUsers(ctx)
	if err != nil {
		writeError(c, err, "list users")
		return
	}

	response.Success(c, result)
}

func (h *UserHandler) ListActive(c *gin.Context) {
	result, err := h.users.ListActiveUsers(c.Request.Context())
	if err != nil {
		writeError(c, err, "list active users")
		return
	}

	response.Success(c, result)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get user")
		return
	}

	response.Success(c, result)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req domain.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.users.UpdateUser(c.Request.Context(), id, &req)
	if err != nil {
		writeError(c, err, "update user")
		return
	}

	response.Success(c, result)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(c.Request.Context(), id); err != nil {
		writeError(c, err, "delete user")
		return
	}

	response.NoContent(c)
}
