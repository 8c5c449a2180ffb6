package models

import (
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("image not found")

type ImageRepositoryInterface interface {
	Create(item *ImageItem) error
	GetByID(id uuid.UUID) (*ImageItem, error)
	List() ([]*ImageItem, error)
	Update(item *ImageItem) error
	Delete(id uuid.UUID) error
	DeleteAll() error
	Count() (int, error)
}
