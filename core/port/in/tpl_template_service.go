package in

import (
	"context"

	"template_server/core/domain"
)

type TemplateService interface {
	// Lifecycle
	CreateTemplate(ctx context.Context, input *domain.TemplateInput, tenantID, userID string) (*domain.Template, error)
	UpdateTemplate(ctx context.Context, id string, input *domain.TemplateInput, tenantID string) (*domain.Template, error)
	GetTemplate(ctx context.Context, id, tenantID string) (*domain.Template, error)
	DeleteTemplate(ctx context.Context, id, tenantID string) error
	ListTemplates(ctx context.Context, tenantID string, filter *domain.TemplateFilter) (*domain.TemplatePage, error)

	// Validation without mutation
	ValidateTemplate(ctx context.Context, id, tenantID string, opts domain.ValidateOptions) (*domain.ValidationResult, error)
	ValidateDraft(ctx context.Context, input *domain.TemplateInput, opts domain.ValidateOptions) (*domain.ValidationResult, error)
}
