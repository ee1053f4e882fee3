package repositories

import (
	"context"

	"github.com/zatekoja/labbook/internal/domain/entities"
)

// LabRepository defines read access to the backend lab catalog
type LabRepository interface {
	// List retrieves all labs
	List(ctx context.Context) ([]*entities.Lab, error)

	// GetByID retrieves a lab with its tests and packages populated
	GetByID(ctx context.Context, id string) (*entities.Lab, error)
}
