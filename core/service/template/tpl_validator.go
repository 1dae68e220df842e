package template

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"template_server/core/domain"
	"template_server/core/port/out"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
)

var (
	templateNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	variableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// DefaultSupportedLocales are the locales checked for translation completeness.
var DefaultSupportedLocales = []string{"en", "es", "fr"}

const validationKeyPrefix = "validation:"

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	SupportedLocales  []string
	FinancialContexts []string
	CacheTTL          time.Duration
	Now               func() time.Time
}

// Validator runs structural and semantic checks over a template snapshot and
// memoizes the outcome per (snapshot, locale).
type Validator struct {
	variables *VariableValidator
	loc       *localizer
	cache     out.ResultCache
	cacheTTL  time.Duration
}

// NewValidator creates a validator. A nil cache disables memoization.
func NewValidator(cfg ValidatorConfig, cache out.ResultCache) *Validator {
	if len(cfg.SupportedLocales) == 0 {
		cfg.SupportedLocales = DefaultSupportedLocales
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	loc := newLocalizer(cfg.SupportedLocales)
	return &Validator{
		variables: newVariableValidator(cfg.FinancialContexts, loc, cfg.Now),
		loc:       loc,
		cache:     cache,
		cacheTTL:  cfg.CacheTTL,
	}
}

// Validate checks t for the requested locale. The same snapshot and options
// always produce the same result.
func (v *Validator) Validate(_ context.Context, t *domain.Template, opts domain.ValidateOptions) domain.ValidationResult {
	locale := opts.LocaleOrDefault()
	_, supported := v.loc.resolve(locale)

	if t == nil {
		f := &findings{loc: v.loc, locale: locale}
		f.add([]string{"template"}, domain.ErrCodeInvalidTemplate, nil, msgTemplateRequired)
		return domain.ValidationResult{
			Valid:   false,
			Errors:  f.errs,
			Summary: domain.ValidationSummary{Locale: locale, LocaleSupported: supported},
		}
	}

	key := v.cacheKey(t, locale, opts.CheckTranslations)
	if v.cache != nil && key != "" {
		if cached, ok := v.cache.Get(key); ok {
			return cloneResult(cached)
		}
	}

	result := v.run(t, locale, supported, opts.CheckTranslations)

	if v.cache != nil && key != "" {
		v.cache.Set(key, cloneResult(result), v.cacheTTL)
	}
	return result
}

// ValidateVariable checks one declaration in the given business context.
func (v *Validator) ValidateVariable(decl domain.VariableDeclaration, bizContext string) domain.VariableResult {
	return v.variables.ValidateVariable(decl, bizContext)
}

// Invalidate drops every memoized result for a template id.
func (v *Validator) Invalidate(id string) int {
	if v.cache == nil || id == "" {
		return 0
	}
	return v.cache.DeletePrefix(validationKeyPrefix + id + ":")
}

// Close stops the result cache's background sweep, if it has one.
func (v *Validator) Close() {
	if c, ok := v.cache.(interface{ Close() }); ok {
		c.Close()
	}
}

func (v *Validator) run(t *domain.Template, locale string, supported, checkTranslations bool) domain.ValidationResult {
	f := &findings{loc: v.loc, locale: locale}

	v.checkStructure(f, t)

	// Undeclared placeholders
	declared := make(map[string]bool, len(t.Variables))
	for _, decl := range t.Variables {
		declared[decl.Name] = true
	}
	for _, name := range ExtractVariables(t.Content) {
		if !declared[name] {
			f.add([]string{"content"}, domain.ErrCodeUndeclaredVariable,
				map[string]any{"variable": name}, msgUndeclaredVariable, name)
		}
	}

	bizContext := t.BusinessContext()
	for _, decl := range t.Variables {
		res := v.variables.validate(decl, bizContext, locale)
		f.errs = append(f.errs, res.Errors...)
	}

	if checkTranslations {
		for _, decl := range t.Variables {
			var missing []string
			for _, loc := range v.loc.supported {
				if strings.TrimSpace(decl.Translations[loc]) == "" {
					missing = append(missing, loc)
				}
			}
			if len(missing) > 0 {
				f.add([]string{"variables", decl.Name, "translations"}, domain.ErrCodeMissingTranslations,
					map[string]any{"variable": decl.Name, "missingLocales": missing},
					msgMissingTranslations, decl.Name, strings.Join(missing, ", "))
			}
		}
	}

	errs := f.errs
	if errs == nil {
		errs = []domain.ValidationError{}
	}
	return domain.ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
		Summary: domain.ValidationSummary{
			VariableCount:   len(t.Variables),
			ContentLength:   utf8.RuneCountInString(t.Content),
			Locale:          locale,
			LocaleSupported: supported,
		},
	}
}

func (v *Validator) checkStructure(f *findings, t *domain.Template) {
	if !templateNamePattern.MatchString(t.Name) {
		f.add([]string{"name"}, domain.ErrCodeInvalidName, nil, msgInvalidName)
	}
	if n := utf8.RuneCountInString(t.Name); n > domain.MaxTemplateNameLength {
		f.add([]string{"name"}, domain.ErrCodeNameTooLong,
			map[string]any{"max": domain.MaxTemplateNameLength, "actual": n},
			msgNameTooLong, domain.MaxTemplateNameLength)
	}

	if strings.TrimSpace(t.Content) == "" {
		f.add([]string{"content"}, domain.ErrCodeContentRequired, nil, msgContentRequired)
	}
	if n := utf8.RuneCountInString(t.Content); n > domain.MaxTemplateContentLength {
		f.add([]string{"content"}, domain.ErrCodeContentTooLong,
			map[string]any{"max": domain.MaxTemplateContentLength, "actual": n},
			msgContentTooLong, domain.MaxTemplateContentLength)
	}

	if n := len(t.Variables); n > domain.MaxTemplateVariables {
		f.add([]string{"variables"}, domain.ErrCodeTooManyVariables,
			map[string]any{"max": domain.MaxTemplateVariables, "actual": n},
			msgTooManyVariables, domain.MaxTemplateVariables)
	}

	seen := make(map[string]bool, len(t.Variables))
	for i, decl := range t.Variables {
		if !variableNamePattern.MatchString(decl.Name) {
			f.add([]string{"variables", strconv.Itoa(i), "name"}, domain.ErrCodeInvalidVariableName,
				map[string]any{"variable": decl.Name}, msgInvalidVariableName, decl.Name)
			continue
		}
		if seen[decl.Name] {
			f.add([]string{"variables", decl.Name, "name"}, domain.ErrCodeDuplicateVariable,
				map[string]any{"variable": decl.Name}, msgDuplicateVariable, decl.Name)
		}
		seen[decl.Name] = true
	}
}

// snapshot is the part of a template that influences validation.
type snapshot struct {
	Name      string                       `json:"n"`
	Content   string                       `json:"c"`
	Variables []domain.VariableDeclaration `json:"v"`
	Context   string                       `json:"x"`
}

// cacheKey addresses a result by template id, version, content hash, locale and
// translation flag so any change to the snapshot misses.
func (v *Validator) cacheKey(t *domain.Template, locale string, translations bool) string {
	raw, err := json.Marshal(snapshot{
		Name:      t.Name,
		Content:   t.Content,
		Variables: t.Variables,
		Context:   t.BusinessContext(),
	})
	if err != nil {
		return ""
	}

	id := t.ID
	if id == "" {
		id = "_"
	}
	flag := "0"
	if translations {
		flag = "1"
	}
	return validationKeyPrefix + id + ":" + strconv.Itoa(t.Version) + ":" +
		strconv.FormatUint(xxhash.Sum64(raw), 16) + ":" + locale + ":" + flag
}

// cloneResult copies r deeply enough that callers cannot reach the cached
// entry through Errors, Path or Details.
func cloneResult(r domain.ValidationResult) domain.ValidationResult {
	c := r
	if r.Errors == nil {
		return c
	}
	c.Errors = make([]domain.ValidationError, len(r.Errors))
	for i, e := range r.Errors {
		if e.Path != nil {
			e.Path = append([]string(nil), e.Path...)
		}
		if e.Details != nil {
			details := make(map[string]any, len(e.Details))
			for k, v := range e.Details {
				if list, ok := v.([]string); ok {
					v = append([]string(nil), list...)
				}
				details[k] = v
			}
			e.Details = details
		}
		c.Errors[i] = e
	}
	return c
}
