package template

import (
	"testing"
	"time"

	"template_server/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func testVariableValidator() *VariableValidator {
	return newVariableValidator(nil, newLocalizer(DefaultSupportedLocales), func() time.Time { return fixedNow })
}

func floatPtr(f float64) *float64 { return &f }

func TestValidateVariable_CurrencyContext(t *testing.T) {
	v := testVariableValidator()
	decl := domain.VariableDeclaration{Name: "amount", Type: domain.VariableTypeCurrency}

	tests := []struct {
		context string
		valid   bool
	}{
		{"general", false},
		{"", false},
		{"invoice", true},
		{"payment", true},
		{" Pricing ", true},
		{"marketing", false},
	}

	for _, tt := range tests {
		t.Run("context="+tt.context, func(t *testing.T) {
			res := v.ValidateVariable(decl, tt.context)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.Len(t, res.Errors, 1)
				assert.Equal(t, domain.ErrCodeInvalidCurrencyContext, res.Errors[0].Code)
				assert.Equal(t, tt.context, res.Errors[0].Details["context"])
			}
		})
	}
}

func TestValidateVariable_CustomFinancialContexts(t *testing.T) {
	v := NewVariableValidator([]string{"billing"})
	decl := domain.VariableDeclaration{Name: "amount", Type: domain.VariableTypeCurrency}

	assert.True(t, v.ValidateVariable(decl, "billing").Valid)
	assert.False(t, v.ValidateVariable(decl, "invoice").Valid)
}

func TestValidateVariable_DateRules(t *testing.T) {
	v := testVariableValidator()

	tests := []struct {
		name  string
		rules *domain.ValidationRules
		valid bool
	}{
		{"no rules", nil, true},
		{"default format", &domain.ValidationRules{}, true},
		{"bounds include today", &domain.ValidationRules{MinDate: "2024-01-01", MaxDate: "2024-12-31"}, true},
		{"min in the future", &domain.ValidationRules{MinDate: "2025-01-01"}, false},
		{"max in the past", &domain.ValidationRules{MaxDate: "2024-06-14"}, false},
		{"min not in format", &domain.ValidationRules{MinDate: "01/01/2024"}, false},
		{"custom format", &domain.ValidationRules{Format: "02/01/2006", MinDate: "01/01/2024"}, true},
		{"pattern accepts", &domain.ValidationRules{Pattern: `^\d{4}-\d{2}-\d{2}$`}, true},
		{"pattern rejects", &domain.ValidationRules{Pattern: `^\d{2}/`}, false},
		{"allow list rejects", &domain.ValidationRules{AllowList: []string{"2020-01-01"}}, false},
		{"too short", &domain.ValidationRules{MinLength: 20}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decl := domain.VariableDeclaration{Name: "due", Type: domain.VariableTypeDate, Validation: tt.rules}
			res := v.ValidateVariable(decl, "")
			assert.Equal(t, tt.valid, res.Valid, "errors: %+v", res.Errors)
			if !tt.valid {
				assert.Equal(t, domain.ErrCodeInvalidDateValidation, res.Errors[0].Code)
				assert.NotEmpty(t, res.Errors[0].Details["reason"])
			}
		})
	}
}

func TestValidateVariable_RuleStructure(t *testing.T) {
	v := testVariableValidator()

	tests := []struct {
		name  string
		rules domain.ValidationRules
		valid bool
	}{
		{"empty", domain.ValidationRules{}, true},
		{"lengths", domain.ValidationRules{MinLength: 1, MaxLength: 10}, true},
		{"negative length", domain.ValidationRules{MinLength: -1}, false},
		{"min above max length", domain.ValidationRules{MinLength: 5, MaxLength: 2}, false},
		{"bad pattern", domain.ValidationRules{Pattern: "(["}, false},
		{"numeric bounds", domain.ValidationRules{Min: floatPtr(1), Max: floatPtr(2)}, true},
		{"inverted numeric bounds", domain.ValidationRules{Min: floatPtr(3), Max: floatPtr(2)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := tt.rules
			decl := domain.VariableDeclaration{Name: "x", Type: domain.VariableTypeText, Validation: &rules}
			res := v.ValidateVariable(decl, "")
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.Equal(t, domain.ErrCodeInvalidValidationRules, res.Errors[0].Code)
			}
		})
	}
}

func TestValidateVariable_DefaultValue(t *testing.T) {
	v := testVariableValidator()

	tests := []struct {
		typ   domain.VariableType
		value any
		valid bool
	}{
		{domain.VariableTypeText, "hi", true},
		{domain.VariableTypeText, 3.0, false},
		{domain.VariableTypeNumber, 3.5, true},
		{domain.VariableTypeNumber, "3.5", false},
		{domain.VariableTypeBoolean, true, true},
		{domain.VariableTypeBoolean, "true", false},
		{domain.VariableTypeDate, "2024-01-31", true},
		{domain.VariableTypeDate, "31/01/2024", false},
		{domain.VariableTypeText, nil, true},
	}

	for _, tt := range tests {
		decl := domain.VariableDeclaration{Name: "x", Type: tt.typ, DefaultValue: tt.value}
		res := v.ValidateVariable(decl, "")
		assert.Equal(t, tt.valid, res.Valid, "%s default %v", tt.typ, tt.value)
		if !tt.valid {
			assert.Equal(t, domain.ErrCodeInvalidDefaultValue, res.Errors[0].Code)
		}
	}
}

func TestValidateVariable_UnknownType(t *testing.T) {
	v := testVariableValidator()
	res := v.ValidateVariable(domain.VariableDeclaration{Name: "x", Type: "EMAIL"}, "invoice")

	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, domain.ErrCodeInvalidVariableType, res.Errors[0].Code)
}

func TestValidateVariable_PlainTypesIgnoreContext(t *testing.T) {
	v := testVariableValidator()
	for _, typ := range []domain.VariableType{domain.VariableTypeText, domain.VariableTypeNumber, domain.VariableTypeBoolean} {
		res := v.ValidateVariable(domain.VariableDeclaration{Name: "x", Type: typ}, "general")
		assert.True(t, res.Valid, typ)
	}
}
