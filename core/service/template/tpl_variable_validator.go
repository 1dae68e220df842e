package template

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"template_server/core/domain"
)

// DefaultFinancialContexts are the business contexts in which CURRENCY
// variables may be declared.
var DefaultFinancialContexts = []string{"invoice", "payment", "pricing"}

// VariableValidator checks a single variable declaration against its type and
// the template's business context.
type VariableValidator struct {
	financial map[string]bool
	loc       *localizer
	now       func() time.Time
}

// NewVariableValidator creates a validator. An empty financialContexts uses
// DefaultFinancialContexts.
func NewVariableValidator(financialContexts []string) *VariableValidator {
	return newVariableValidator(financialContexts, newLocalizer([]string{domain.DefaultLocale}), time.Now)
}

func newVariableValidator(financialContexts []string, loc *localizer, now func() time.Time) *VariableValidator {
	if len(financialContexts) == 0 {
		financialContexts = DefaultFinancialContexts
	}
	financial := make(map[string]bool, len(financialContexts))
	for _, c := range financialContexts {
		financial[normalizeContext(c)] = true
	}
	return &VariableValidator{financial: financial, loc: loc, now: now}
}

func normalizeContext(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// IsFinancialContext reports whether CURRENCY variables are allowed in bizContext.
func (v *VariableValidator) IsFinancialContext(bizContext string) bool {
	return v.financial[normalizeContext(bizContext)]
}

// ValidateVariable checks decl in bizContext. Business rule failures are
// returned as entries of the result, never as Go errors.
func (v *VariableValidator) ValidateVariable(decl domain.VariableDeclaration, bizContext string) domain.VariableResult {
	return v.validate(decl, bizContext, domain.DefaultLocale)
}

func (v *VariableValidator) validate(decl domain.VariableDeclaration, bizContext, locale string) domain.VariableResult {
	f := &findings{loc: v.loc, locale: locale}

	if !decl.Type.IsValid() {
		f.add([]string{"variables", decl.Name, "type"}, domain.ErrCodeInvalidVariableType,
			map[string]any{"variable": decl.Name, "type": string(decl.Type)},
			msgInvalidVariableType, decl.Name, string(decl.Type))
		return f.result()
	}

	switch decl.Type {
	case domain.VariableTypeCurrency:
		if !v.IsFinancialContext(bizContext) {
			f.add([]string{"variables", decl.Name, "type"}, domain.ErrCodeInvalidCurrencyContext,
				map[string]any{"variable": decl.Name, "context": bizContext},
				msgCurrencyContext, decl.Name)
		}
	case domain.VariableTypeDate:
		if decl.Validation != nil {
			if reason := v.checkDateRules(decl.Validation); reason != "" {
				f.add([]string{"variables", decl.Name, "validation"}, domain.ErrCodeInvalidDateValidation,
					map[string]any{"variable": decl.Name, "reason": reason},
					msgDateValidation, decl.Name)
			}
		}
	}

	if decl.Validation != nil {
		if reason := checkRuleStructure(decl.Validation); reason != "" {
			f.add([]string{"variables", decl.Name, "validation"}, domain.ErrCodeInvalidValidationRules,
				map[string]any{"variable": decl.Name, "reason": reason},
				msgValidationRules, decl.Name, reason)
		}
	}

	if decl.DefaultValue != nil && !defaultMatchesType(decl) {
		f.add([]string{"variables", decl.Name, "defaultValue"}, domain.ErrCodeInvalidDefaultValue,
			map[string]any{"variable": decl.Name, "type": string(decl.Type)},
			msgDefaultValue, decl.Name, string(decl.Type))
	}

	return f.result()
}

// checkRuleStructure returns why a ruleset is malformed, or "".
func checkRuleStructure(r *domain.ValidationRules) string {
	switch {
	case r.MinLength < 0 || r.MaxLength < 0:
		return "length bounds must not be negative"
	case r.MaxLength > 0 && r.MinLength > r.MaxLength:
		return "minLength exceeds maxLength"
	case r.Min != nil && r.Max != nil && *r.Min > *r.Max:
		return "min exceeds max"
	}
	if r.Pattern != "" {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return "pattern does not compile"
		}
	}
	return ""
}

// checkDateRules runs the ruleset against the current date rendered in the
// ruleset's layout and returns the first rejection reason, or "".
func (v *VariableValidator) checkDateRules(r *domain.ValidationRules) string {
	layout := r.DateFormat()
	value := v.now().Format(layout)

	now, err := time.Parse(layout, value)
	if err != nil {
		return fmt.Sprintf("format %q cannot parse its own output", layout)
	}

	if r.MinDate != "" {
		minDate, err := time.Parse(layout, r.MinDate)
		if err != nil {
			return "minDate does not match format"
		}
		if now.Before(minDate) {
			return "current date is before minDate"
		}
	}
	if r.MaxDate != "" {
		maxDate, err := time.Parse(layout, r.MaxDate)
		if err != nil {
			return "maxDate does not match format"
		}
		if now.After(maxDate) {
			return "current date is after maxDate"
		}
	}

	n := len([]rune(value))
	if r.MinLength > 0 && n < r.MinLength {
		return "current date is shorter than minLength"
	}
	if r.MaxLength > 0 && n > r.MaxLength {
		return "current date is longer than maxLength"
	}
	if r.Pattern != "" {
		if re, err := regexp.Compile(r.Pattern); err == nil && !re.MatchString(value) {
			return "current date does not match pattern"
		}
	}
	if len(r.AllowList) > 0 && !slices.Contains(r.AllowList, value) {
		return "current date is not in allowList"
	}
	return ""
}

func defaultMatchesType(decl domain.VariableDeclaration) bool {
	switch decl.Type {
	case domain.VariableTypeText:
		_, ok := decl.DefaultValue.(string)
		return ok
	case domain.VariableTypeNumber, domain.VariableTypeCurrency:
		return isNumeric(decl.DefaultValue)
	case domain.VariableTypeBoolean:
		_, ok := decl.DefaultValue.(bool)
		return ok
	case domain.VariableTypeDate:
		s, ok := decl.DefaultValue.(string)
		if !ok {
			return false
		}
		_, err := time.Parse(decl.Validation.DateFormat(), s)
		return err == nil
	}
	return false
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// findings accumulates localized validation errors.
type findings struct {
	loc    *localizer
	locale string
	errs   []domain.ValidationError
}

func (f *findings) add(path []string, code string, details map[string]any, key string, args ...any) {
	f.errs = append(f.errs, domain.ValidationError{
		Field:            strings.Join(path, "."),
		Path:             path,
		Code:             code,
		Message:          f.loc.englishf(key, args...),
		LocalizedMessage: f.loc.localizedf(f.locale, key, args...),
		Details:          details,
	})
}

func (f *findings) result() domain.VariableResult {
	return domain.VariableResult{Valid: len(f.errs) == 0, Errors: f.errs}
}
