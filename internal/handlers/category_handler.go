package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"budgettracker/internal/services"
)

// CategoryHandler handles category-related requests
type CategoryHandler struct {
	categoryService services.CategoryServicer
	auditService    services.AuditServicer
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService services.CategoryServicer, auditService services.AuditServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, auditService: auditService}
}

// CreateCategoryRequest represents the request payload for creating a category
type CreateCategoryRequest struct {
	Name  string `json:"name" binding:"required,max=50"`
	Color string `json:"color" binding:"omitempty,hex_color"`
}

// CreateCategory handles the creation of a new category
// @Summary     Create a category
// @Description Create a category. Names are unique per user; color defaults to #3B82F6.
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCategoryRequest true "Category details"
// @Success     201 {object} models.Category "Category created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate category name"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidBody(err))
		return
	}

	category, err := h.categoryService.CreateCategory(c.Request.Context(), userID, services.CategoryInput{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditActionCreate, "category", category.ID, c.ClientIP(),
		map[string]interface{}{"name": category.Name, "color": category.Color})

	c.JSON(http.StatusCreated, category)
}

// GetCategories handles listing categories
// @Summary     Get categories
// @Description List the authenticated user's categories ordered by name
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Items per page (max 100)"
// @Success     200 {array}  models.Category "Categories"
// @Header      200 {integer} X-Total-Count "Total number of categories"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories [get]
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, err := bindPage(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.categoryService.GetUserCategories(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondWithList(c, result)
}

// GetCategory handles retrieving a category
// @Summary     Get category by ID
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} models.Category "Category details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id} [get]
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategoryByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, category)
}

// UpdateCategory handles updating a category
// @Summary     Update category
// @Description Rename or recolor a category. An empty name is ignored; a null color resets it.
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                 true "Category ID"
// @Param       request body services.CategoryPatch true "Fields to change"
// @Success     200 {object} models.Category "Updated category"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Duplicate category name"
// @Router      /categories/{id} [patch]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req services.CategoryPatch
	changes, err := bindPatch(c, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.UpdateCategory(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditActionUpdate, "category", category.ID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, category)
}

// DeleteCategory handles deleting a category
// @Summary     Delete category
// @Description Delete a category that no transaction references
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} SuccessResponse "Category deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Category in use"
// @Router      /categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID := c.Param("id")
	if err := h.categoryService.DeleteCategory(c.Request.Context(), userID, categoryID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditActionDelete, "category", categoryID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
