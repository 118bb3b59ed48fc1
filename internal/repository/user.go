package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/skillswap/chat-server/internal/model"
)

// UserRepository reads display data owned by the registration subsystem.
type UserRepository interface {
	FindSummary(ctx context.Context, id string) (*model.PrincipalSummary, error)
}

type userRepo struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindSummary(ctx context.Context, id string) (*model.PrincipalSummary, error) {
	var summary model.PrincipalSummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT id, name, email FROM users WHERE id = $1
	`, id)
	return HandleNotFound(&summary, err)
}
