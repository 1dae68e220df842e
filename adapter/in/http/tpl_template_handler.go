package http

import (
	"template_server/core/domain"
	"template_server/core/port/in"
	"template_server/infra/middleware"
	"template_server/pkg/apperr"
	"template_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// TemplateHandler handles HTTP requests for message templates
type TemplateHandler struct {
	service in.TemplateService
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(service in.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// Register registers template routes
func (h *TemplateHandler) Register(router fiber.Router) {
	templates := router.Group("/templates")

	templates.Post("/validate", h.ValidateDraft)
	templates.Get("/", h.List)
	templates.Post("/", h.Create)

	byID := middleware.ValidateUUID("id", "template")
	templates.Get("/:id", byID, h.GetByID)
	templates.Put("/:id", byID, h.Update)
	templates.Delete("/:id", byID, h.Delete)
	templates.Get("/:id/validation", byID, h.Validate)
}

// Create creates a new template
// @Summary Create a message template
// @Tags Templates
// @Accept json
// @Produce json
// @Param request body domain.TemplateInput true "Template data"
// @Success 201 {object} domain.Template
// @Router /api/v1/templates [post]
func (h *TemplateHandler) Create(c *fiber.Ctx) error {
	input, err := parseInput(c)
	if err != nil {
		return err
	}

	tpl, err := h.service.CreateTemplate(c.UserContext(), input, middleware.GetTenantID(c), middleware.GetUserID(c))
	if err != nil {
		return err
	}
	return response.Created(c, tpl)
}

// Update applies a partial update
// @Summary Update a message template
// @Tags Templates
// @Router /api/v1/templates/{id} [put]
func (h *TemplateHandler) Update(c *fiber.Ctx) error {
	input, err := parseInput(c)
	if err != nil {
		return err
	}

	tpl, err := h.service.UpdateTemplate(c.UserContext(), c.Params("id"), input, middleware.GetTenantID(c))
	if err != nil {
		return err
	}
	return response.OK(c, tpl)
}

// GetByID returns a template
func (h *TemplateHandler) GetByID(c *fiber.Ctx) error {
	tpl, err := h.service.GetTemplate(c.UserContext(), c.Params("id"), middleware.GetTenantID(c))
	if err != nil {
		return err
	}
	return response.OK(c, tpl)
}

// Delete removes a template
func (h *TemplateHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.DeleteTemplate(c.UserContext(), c.Params("id"), middleware.GetTenantID(c)); err != nil {
		return err
	}
	return response.NoContent(c)
}

// List returns one page of the tenant's templates
// @Summary List message templates
// @Tags Templates
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size (max 100)"
// @Param category query string false "Category filter"
// @Param isActive query bool false "Active filter"
// @Router /api/v1/templates [get]
func (h *TemplateHandler) List(c *fiber.Ctx) error {
	p := GetPaginationParams(c, 20)
	filter := &domain.TemplateFilter{
		Category: QueryString(c, "category"),
		IsActive: QueryBool(c, "isActive"),
		Page:     p.Page,
		Limit:    p.Limit,
	}

	page, err := h.service.ListTemplates(c.UserContext(), middleware.GetTenantID(c), filter)
	if err != nil {
		return err
	}

	return response.OKWithMeta(c, page.Templates, &response.Meta{
		Total:   page.Total,
		Page:    page.Page,
		Limit:   page.Limit,
		HasMore: page.HasMore(),
	})
}

// Validate validates a stored template without changing it
func (h *TemplateHandler) Validate(c *fiber.Ctx) error {
	result, err := h.service.ValidateTemplate(c.UserContext(), c.Params("id"), middleware.GetTenantID(c), validateOptions(c))
	if err != nil {
		return err
	}
	return response.OK(c, result)
}

// ValidateDraft validates a template body that is not stored
// @Summary Validate a draft template
// @Tags Templates
// @Param locale query string false "Message locale"
// @Param translations query bool false "Check translation coverage"
// @Router /api/v1/templates/validate [post]
func (h *TemplateHandler) ValidateDraft(c *fiber.Ctx) error {
	input, err := parseInput(c)
	if err != nil {
		return err
	}

	result, err := h.service.ValidateDraft(c.UserContext(), input, validateOptions(c))
	if err != nil {
		return err
	}
	return response.OK(c, result)
}

func parseInput(c *fiber.Ctx) (*domain.TemplateInput, error) {
	var input domain.TemplateInput
	if err := c.BodyParser(&input); err != nil {
		return nil, apperr.BadRequest("invalid request body")
	}
	return &input, nil
}

func validateOptions(c *fiber.Ctx) domain.ValidateOptions {
	opts := domain.ValidateOptions{Locale: c.Query("locale")}
	if b := QueryBool(c, "translations"); b != nil {
		opts.CheckTranslations = *b
	}
	return opts
}
