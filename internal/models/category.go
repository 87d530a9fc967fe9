package models

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#3B82F6"

// Category is a user-defined label for transactions. Names are unique per owner.
type Category struct {
	Base
	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_categories_user_name" json:"user_id"`
	Name   string `gorm:"not null;uniqueIndex:idx_categories_user_name" json:"name"`
	Color  string `gorm:"not null" json:"color"`
}
