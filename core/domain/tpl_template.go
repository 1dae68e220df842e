package domain

import (
	"time"
)

// Template limits
const (
	MaxTemplateNameLength    = 64
	MaxTemplateContentLength = 1024
	MaxTemplateVariables     = 10
)

// VariableType defines the value type of a template variable
type VariableType string

const (
	VariableTypeText     VariableType = "TEXT"
	VariableTypeNumber   VariableType = "NUMBER"
	VariableTypeDate     VariableType = "DATE"
	VariableTypeBoolean  VariableType = "BOOLEAN"
	VariableTypeCurrency VariableType = "CURRENCY"
)

// IsValid reports whether t is one of the known variable types.
func (t VariableType) IsValid() bool {
	switch t {
	case VariableTypeText, VariableTypeNumber, VariableTypeDate, VariableTypeBoolean, VariableTypeCurrency:
		return true
	}
	return false
}

// MetadataContextKey is the metadata key holding the business context of a template.
const MetadataContextKey = "context"

// Template is a named piece of message text owned by a tenant
type Template struct {
	ID        string                `json:"id"`
	TenantID  string                `json:"tenantId"`
	CreatedBy string                `json:"createdBy"`
	Name      string                `json:"name"`
	Content   string                `json:"content"`
	Variables []VariableDeclaration `json:"variables"`
	Category  string                `json:"category"`
	Metadata  map[string]any        `json:"metadata"`
	Version   int                   `json:"version"`
	IsActive  bool                  `json:"isActive"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// BusinessContext returns the "context" metadata entry, or "" when absent.
func (t *Template) BusinessContext() string {
	if t == nil || t.Metadata == nil {
		return ""
	}
	if s, ok := t.Metadata[MetadataContextKey].(string); ok {
		return s
	}
	return ""
}

// Clone returns a deep copy safe to mutate independently.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	c := *t
	if t.Variables != nil {
		c.Variables = make([]VariableDeclaration, len(t.Variables))
		for i, v := range t.Variables {
			c.Variables[i] = v.Clone()
		}
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// VariableDeclaration declares a placeholder used by template content
type VariableDeclaration struct {
	Name         string            `json:"name"`
	Type         VariableType      `json:"type"`
	Required     bool              `json:"required"`
	DefaultValue any               `json:"defaultValue,omitempty"`
	Validation   *ValidationRules  `json:"validation,omitempty"`
	Description  string            `json:"description,omitempty"`
	Translations map[string]string `json:"translations,omitempty"`
}

// Clone returns a deep copy of the declaration
func (v VariableDeclaration) Clone() VariableDeclaration {
	c := v
	if v.Validation != nil {
		rules := *v.Validation
		if v.Validation.AllowList != nil {
			rules.AllowList = append([]string(nil), v.Validation.AllowList...)
		}
		c.Validation = &rules
	}
	if v.Translations != nil {
		c.Translations = make(map[string]string, len(v.Translations))
		for k, s := range v.Translations {
			c.Translations[k] = s
		}
	}
	return c
}

// ValidationRules is an optional ruleset attached to a variable declaration.
// Values supplied at compose time are checked against it.
type ValidationRules struct {
	MinLength int      `json:"minLength,omitempty"`
	MaxLength int      `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	AllowList []string `json:"allowList,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Format    string   `json:"format,omitempty"`  // Go layout for DATE values
	MinDate   string   `json:"minDate,omitempty"` // in Format
	MaxDate   string   `json:"maxDate,omitempty"` // in Format
}

// DefaultDateFormat is used for DATE variables without an explicit format
const DefaultDateFormat = "2006-01-02"

// DateFormat returns the configured layout or DefaultDateFormat.
func (r *ValidationRules) DateFormat() string {
	if r == nil || r.Format == "" {
		return DefaultDateFormat
	}
	return r.Format
}

// TemplateInput carries the caller-supplied fields for create and update.
// Nil pointers on update leave the stored value untouched.
type TemplateInput struct {
	Name            *string                `json:"name"`
	Content         *string                `json:"content"`
	Variables       *[]VariableDeclaration `json:"variables"`
	Category        *string                `json:"category"`
	Metadata        map[string]any         `json:"metadata"`
	IsActive        *bool                  `json:"isActive"`
	ExpectedVersion *int                   `json:"expectedVersion,omitempty"`
}

// TemplateFilter for listing templates
type TemplateFilter struct {
	Category *string
	IsActive *bool
	Page     int
	Limit    int
}

// Normalize applies pagination defaults and bounds
func (f *TemplateFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
}

// Offset returns the row offset for the current page
func (f *TemplateFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// TemplatePage is one page of a template listing
type TemplatePage struct {
	Templates []*Template `json:"templates"`
	Total     int         `json:"total"`
	Page      int         `json:"page"`
	Limit     int         `json:"limit"`
}

// HasMore reports whether further pages exist
func (p *TemplatePage) HasMore() bool {
	return p.Page*p.Limit < p.Total
}
