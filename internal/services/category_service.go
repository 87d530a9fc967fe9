package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/validator"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db    *gorm.DB
	guard Guard
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB, guard Guard) CategoryServicer {
	return &categoryService{db: db, guard: guard}
}

// CreateCategory creates a new category. Names are unique per user.
func (s *categoryService) CreateCategory(ctx context.Context, userID string, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Category name is required")
	}
	color := in.Color
	if color == "" {
		color = models.DefaultCategoryColor
	}
	if err := validateColor(color); err != nil {
		return nil, err
	}

	if err := s.ensureNameFree(ctx, userID, name, ""); err != nil {
		return nil, err
	}

	category := &models.Category{
		UserID: userID,
		Name:   name,
		Color:  color,
	}
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateCategory
		}
		return nil, apperrors.Internal(err)
	}
	return category, nil
}

// GetUserCategories returns the user's categories ordered by name.
func (s *categoryService) GetUserCategories(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Category{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	var categories []models.Category
	if err := base.Order("name ASC").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCategoryByID returns a category by ID if it belongs to the user.
func (s *categoryService) GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error) {
	return s.guard.Category(ctx, userID, categoryID)
}

// UpdateCategory renames or recolors a category.
func (s *categoryService) UpdateCategory(ctx context.Context, userID, categoryID string, p CategoryPatch) (*models.Category, error) {
	category, err := s.guard.Category(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name := strings.TrimSpace(p.Name.Value); p.Name.Present() && name != "" && name != category.Name {
		if err := s.ensureNameFree(ctx, userID, name, category.ID); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if p.Color.Set {
		color := p.Color.Value
		if p.Color.Null || color == "" {
			color = models.DefaultCategoryColor
		}
		if err := validateColor(color); err != nil {
			return nil, err
		}
		updates["color"] = color
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(category).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperrors.ErrDuplicateCategory
			}
			return nil, apperrors.Internal(err)
		}
	}
	return s.guard.Category(ctx, userID, category.ID)
}

// DeleteCategory deletes a category that no transaction references.
func (s *categoryService) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	category, err := s.guard.Category(ctx, userID, categoryID)
	if err != nil {
		return err
	}
	if err := s.guard.CategoryUnused(ctx, category.ID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(category).Error; err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// ensureNameFree is a read-then-decide check; the unique index backs it up
// when two requests race.
func (s *categoryService) ensureNameFree(ctx context.Context, userID, name, exceptID string) error {
	q := s.db.WithContext(ctx).Model(&models.Category{}).Where("user_id = ? AND name = ?", userID, name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Internal(err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateCategory
	}
	return nil
}

func validateColor(color string) error {
	if err := validator.Var(color, "hex_color"); err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Color must be a hex value like #3B82F6")
	}
	return nil
}
