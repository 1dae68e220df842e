package template

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys are the English format strings.
const (
	msgTemplateRequired    = "template is required"
	msgInvalidName         = "name must contain only letters, digits, underscores and hyphens"
	msgNameTooLong         = "name must be at most %d characters"
	msgContentRequired     = "content is required"
	msgContentTooLong      = "content must be at most %d characters"
	msgTooManyVariables    = "at most %d variables are allowed"
	msgDuplicateVariable   = "variable %s is declared more than once"
	msgInvalidVariableName = "variable name %s is invalid"
	msgInvalidVariableType = "variable %s has unknown type %s"
	msgUndeclaredVariable  = "variable %s is used in content but not declared"
	msgCurrencyContext     = "currency variable %s is only allowed in financial contexts"
	msgDateValidation      = "date validation rules of %s reject the current date"
	msgValidationRules     = "validation rules of %s are invalid: %s"
	msgDefaultValue        = "default value of %s does not match type %s"
	msgMissingTranslations = "variable %s is missing translations for %s"
)

var translations = map[string]map[language.Tag]string{
	msgTemplateRequired: {
		language.Spanish: "la plantilla es obligatoria",
		language.French:  "le modèle est obligatoire",
	},
	msgInvalidName: {
		language.Spanish: "el nombre solo puede contener letras, dígitos, guiones bajos y guiones",
		language.French:  "le nom ne peut contenir que des lettres, des chiffres, des traits de soulignement et des tirets",
	},
	msgNameTooLong: {
		language.Spanish: "el nombre debe tener como máximo %d caracteres",
		language.French:  "le nom doit comporter au plus %d caractères",
	},
	msgContentRequired: {
		language.Spanish: "el contenido es obligatorio",
		language.French:  "le contenu est obligatoire",
	},
	msgContentTooLong: {
		language.Spanish: "el contenido debe tener como máximo %d caracteres",
		language.French:  "le contenu doit comporter au plus %d caractères",
	},
	msgTooManyVariables: {
		language.Spanish: "se permiten como máximo %d variables",
		language.French:  "au plus %d variables sont autorisées",
	},
	msgDuplicateVariable: {
		language.Spanish: "la variable %s está declarada más de una vez",
		language.French:  "la variable %s est déclarée plusieurs fois",
	},
	msgInvalidVariableName: {
		language.Spanish: "el nombre de variable %s no es válido",
		language.French:  "le nom de variable %s n'est pas valide",
	},
	msgInvalidVariableType: {
		language.Spanish: "la variable %s tiene un tipo desconocido %s",
		language.French:  "la variable %s a un type inconnu %s",
	},
	msgUndeclaredVariable: {
		language.Spanish: "la variable %s se usa en el contenido pero no está declarada",
		language.French:  "la variable %s est utilisée dans le contenu mais n'est pas déclarée",
	},
	msgCurrencyContext: {
		language.Spanish: "la variable de moneda %s solo se permite en contextos financieros",
		language.French:  "la variable monétaire %s n'est autorisée que dans des contextes financiers",
	},
	msgDateValidation: {
		language.Spanish: "las reglas de fecha de %s rechazan la fecha actual",
		language.French:  "les règles de date de %s rejettent la date du jour",
	},
	msgValidationRules: {
		language.Spanish: "las reglas de validación de %s no son válidas: %s",
		language.French:  "les règles de validation de %s ne sont pas valides : %s",
	},
	msgDefaultValue: {
		language.Spanish: "el valor predeterminado de %s no coincide con el tipo %s",
		language.French:  "la valeur par défaut de %s ne correspond pas au type %s",
	},
	msgMissingTranslations: {
		language.Spanish: "a la variable %s le faltan traducciones para %s",
		language.French:  "il manque à la variable %s des traductions pour %s",
	},
}

// newCatalog builds the message catalog. English keys double as messages.
func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, byLang := range translations {
		_ = b.SetString(language.English, key, key)
		for tag, msg := range byLang {
			_ = b.SetString(tag, key, msg)
		}
	}
	return b
}

// localizer resolves requested locales against the supported list and
// formats messages through x/text printers.
type localizer struct {
	supported []string
	matcher   language.Matcher
	printers  map[string]*message.Printer
	english   *message.Printer
}

func newLocalizer(supported []string) *localizer {
	cat := newCatalog()

	tags := make([]language.Tag, 0, len(supported))
	printers := make(map[string]*message.Printer, len(supported))
	kept := make([]string, 0, len(supported))
	for _, loc := range supported {
		tag, err := language.Parse(loc)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		kept = append(kept, loc)
		printers[loc] = message.NewPrinter(tag, message.Catalog(cat))
	}

	l := &localizer{
		supported: kept,
		printers:  printers,
		english:   message.NewPrinter(language.English, message.Catalog(cat)),
	}
	if len(tags) > 0 {
		l.matcher = language.NewMatcher(tags)
	}
	return l
}

// resolve returns the supported locale matching the request and whether the
// request was supported at all.
func (l *localizer) resolve(locale string) (string, bool) {
	if l.matcher == nil {
		return "", false
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", false
	}
	_, idx, conf := l.matcher.Match(tag)
	if conf < language.High {
		return "", false
	}
	return l.supported[idx], true
}

// englishf formats the message in English.
func (l *localizer) englishf(key string, args ...any) string {
	return l.english.Sprintf(key, args...)
}

// localizedf formats the message for locale, falling back to English.
func (l *localizer) localizedf(locale, key string, args ...any) string {
	if resolved, ok := l.resolve(locale); ok {
		return l.printers[resolved].Sprintf(key, args...)
	}
	return l.english.Sprintf(key, args...)
}
