package calendar

import "context"

type Repository interface {
	ListTemplates(ctx context.Context, activeOnly bool) ([]ClassTemplate, error)
	CreateTemplate(ctx context.Context, t *ClassTemplate) error
	DeleteTemplate(ctx context.Context, id int) error

	InsertInstanceIfMissing(ctx context.Context, c *ClassInstance) (bool, error)
	CreateInstance(ctx context.Context, c *ClassInstance) error
	GetByID(ctx context.Context, id int) (*ClassInstance, error)
	ListBetween(ctx context.Context, from, to string, activeOnly bool) ([]ClassInstance, error)
	ListAll(ctx context.Context) ([]ClassInstance, error)
	UpdateInstance(ctx context.Context, c *ClassInstance) error
	DeleteInstance(ctx context.Context, id int) error
}
