package chunker

import "regexp"

// Chunk categories. A closed but extensible tag set: adding a category means
// adding a rule to categoryRules, not changing the matching logic.
const (
	CategoryDosage           = "dosage"
	CategoryContraindication = "contraindication"
	CategorySafety           = "safety"
	CategoryInteraction      = "interaction"
	CategoryProtocol         = "protocol"
	CategoryTaxonomy         = "taxonomy"
	CategoryFAQ              = "faq"
	CategoryGeneral          = "general"
)

// DefaultPriority is assigned when no rule matches.
const DefaultPriority = 0.5

// rule maps a text pattern to a category and clinical priority.
type rule struct {
	pattern  *regexp.Regexp
	category string
	priority float64
}

// categoryRules is evaluated in order; first match wins. Ordering encodes
// clinical criticality: contraindications and dosing outrank everything else,
// so a paragraph mentioning both a dose and a contraindication is tagged as
// a contraindication.
var categoryRules = []rule{
	{
		pattern:  regexp.MustCompile(`(?i)contra[- ]?indica|n[ãa]o\s+deve\s+(ser\s+)?(usar|tomar|administrad)`),
		category: CategoryContraindication,
		priority: 1.0,
	},
	{
		pattern:  regexp.MustCompile(`(?i)\d+\s*(mg|mcg|µg|g|ml|ui)\b|\bdose\b|dosagem|posologia`),
		category: CategoryDosage,
		priority: 0.95,
	},
	{
		pattern:  regexp.MustCompile(`(?i)al[ée]rg|advers|efeito[s]?\s+colaterai?s?|seguran[cç]a|gravidez|gestante|amamenta`),
		category: CategorySafety,
		priority: 0.9,
	},
	{
		pattern:  regexp.MustCompile(`(?i)intera[cç][ãa]o|interage(m)?\s+com|uso\s+concomitante`),
		category: CategoryInteraction,
		priority: 0.85,
	},
	{
		pattern:  regexp.MustCompile(`(?i)protocolo|esquema\s+terap|supervisionad|poliquimioterapia|\bPQT\b|roteiro\s+de\s+dispensa`),
		category: CategoryProtocol,
		priority: 0.8,
	},
	{
		pattern:  regexp.MustCompile(`(?i)classifica[cç][ãa]o|paucibacilar|multibacilar|\bPB\b|\bMB\b`),
		category: CategoryTaxonomy,
		priority: 0.7,
	},
	{
		pattern:  regexp.MustCompile(`(?i)pergunta[s]?\s+frequente|\bFAQ\b|d[uú]vida[s]?\s+comu`),
		category: CategoryFAQ,
		priority: 0.6,
	},
}

// classify returns the category and priority for a chunk text.
// Default: general, DefaultPriority.
func classify(text string) (string, float64) {
	for _, r := range categoryRules {
		if r.pattern.MatchString(text) {
			return r.category, r.priority
		}
	}
	return CategoryGeneral, DefaultPriority
}
