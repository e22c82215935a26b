package repository

import (
	"context"
	"database/sql"

	"github.com/suar-net/suar-playground/internal/model"
)

type IRequestRepository interface {
	Create(ctx context.Context, request *model.ArchivedRequest) error
	Recent(ctx context.Context, limit int) ([]*model.ArchivedRequest, error)
}

type IRepository interface {
	Request() IRequestRepository
}

type Repository struct {
	request IRequestRepository
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		request: NewRequestRepository(db),
	}
}

func (r *Repository) Request() IRequestRepository {
	return r.request
}
