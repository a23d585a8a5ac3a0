package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mekelleuniv/exam-share-bot/internal/models"
)

type ResourceRepository interface {
	Create(resource *models.Resource) error
	Search(query string, limit int) ([]models.Resource, error)
	FindByID(id uint) (*models.Resource, error)
}

type resourceRepository struct {
	db *gorm.DB
}

// Create implements ResourceRepository. The id is assigned by the store;
// an empty query later matches every row, so no field is required.
func (r *resourceRepository) Create(resource *models.Resource) error {
	if resource.UploadedAt.IsZero() {
		resource.UploadedAt = time.Now().UTC()
	}
	if err := r.db.Create(resource).Error; err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	return nil
}

// Search implements ResourceRepository. Matching is plain substring over
// title, course code and department; results are newest first. An empty
// query lists the most recent uploads.
func (r *resourceRepository) Search(query string, limit int) ([]models.Resource, error) {
	var resources []models.Resource
	like := "%" + query + "%"
	err := r.db.
		Where("title LIKE ? OR course_code LIKE ? OR department LIKE ?", like, like, like).
		Order("uploaded_at DESC, id DESC").
		Limit(limit).
		Find(&resources).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search resources: %w", err)
	}

	return resources, nil
}

// FindByID implements ResourceRepository.
func (r *resourceRepository) FindByID(id uint) (*models.Resource, error) {
	var resource models.Resource
	if err := r.db.Where("id = ?", id).First(&resource).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("resource not found: %w", err)
		}

		return nil, fmt.Errorf("failed to find resource: %w", err)
	}

	return &resource, nil
}

func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}
