package domain

// Validation error codes
const (
	ErrCodeInvalidTemplate        = "ERR_INVALID_TEMPLATE"
	ErrCodeInvalidName            = "ERR_INVALID_NAME"
	ErrCodeNameTooLong            = "ERR_NAME_TOO_LONG"
	ErrCodeContentRequired        = "ERR_CONTENT_REQUIRED"
	ErrCodeContentTooLong         = "ERR_CONTENT_TOO_LONG"
	ErrCodeTooManyVariables       = "ERR_TOO_MANY_VARIABLES"
	ErrCodeDuplicateVariable      = "ERR_DUPLICATE_VARIABLE"
	ErrCodeInvalidVariableName    = "ERR_INVALID_VARIABLE_NAME"
	ErrCodeInvalidVariableType    = "ERR_INVALID_VARIABLE_TYPE"
	ErrCodeUndeclaredVariable     = "ERR_UNDECLARED_VARIABLE"
	ErrCodeInvalidCurrencyContext = "ERR_INVALID_CURRENCY_CONTEXT"
	ErrCodeInvalidDateValidation  = "ERR_INVALID_DATE_VALIDATION"
	ErrCodeInvalidValidationRules = "ERR_INVALID_VALIDATION_RULES"
	ErrCodeInvalidDefaultValue    = "ERR_INVALID_DEFAULT_VALUE"
	ErrCodeMissingTranslations    = "ERR_MISSING_TRANSLATIONS"
)

// ValidationError is one structured validation finding
type ValidationError struct {
	Field            string         `json:"field"`
	Path             []string       `json:"path,omitempty"`
	Code             string         `json:"code"`
	Message          string         `json:"message"`
	LocalizedMessage string         `json:"localizedMessage,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// ValidationSummary holds counters computed during validation
type ValidationSummary struct {
	VariableCount   int    `json:"variableCount"`
	ContentLength   int    `json:"contentLength"`
	Locale          string `json:"locale"`
	LocaleSupported bool   `json:"localeSupported"`
}

// ValidationResult is the computed outcome of validating a template snapshot
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Errors  []ValidationError `json:"errors"`
	Summary ValidationSummary `json:"summary"`
}

// HasCode reports whether any error carries the given code
func (r *ValidationResult) HasCode(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// CountCode returns how many errors carry the given code
func (r *ValidationResult) CountCode(code string) int {
	n := 0
	for _, e := range r.Errors {
		if e.Code == code {
			n++
		}
	}
	return n
}

// VariableResult is the outcome of checking a single variable declaration
type VariableResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidateOptions selects the locale and optional checks of a validation run
type ValidateOptions struct {
	Locale            string
	CheckTranslations bool
}

// DefaultLocale is used when a caller does not request one
const DefaultLocale = "en"

// LocaleOrDefault returns the requested locale or DefaultLocale
func (o ValidateOptions) LocaleOrDefault() string {
	if o.Locale == "" {
		return DefaultLocale
	}
	return o.Locale
}
