// Package persona defines the closed set of answer personas and their
// prompt and fallback material.
//
// Two personas exist: Dr. Gasnelio answers in precise clinical language for
// health professionals; Gá answers in plain, welcoming language for
// patients and caregivers. The set is closed on purpose: an unknown
// persona id is a caller error, rejected before any retrieval work.
package persona

import (
	"fmt"
	"sort"
	"strings"
)

// Known persona identifiers.
const (
	DrGasnelio = "dr_gasnelio"
	Ga         = "ga"
)

// Persona carries everything the response gate needs: the system prompt
// for LLM calls and the template material for degraded answers.
type Persona struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"-"`

	// fallbackIntro opens a template answer built from retrieved context.
	fallbackIntro string
	// fallbackEmpty is the full answer when retrieval found nothing.
	fallbackEmpty string
}

var registry = map[string]Persona{
	DrGasnelio: {
		ID:          DrGasnelio,
		Name:        "Dr. Gasnelio",
		Description: "Farmacêutico clínico: linguagem técnica, referências ao PCDT, voltado a profissionais de saúde.",
		SystemPrompt: "Você é o Dr. Gasnelio, farmacêutico clínico especialista em hanseníase " +
			"e no roteiro de dispensação da poliquimioterapia (PQT). Responda em português, " +
			"com precisão técnica e terminologia farmacêutica correta. Baseie-se exclusivamente " +
			"no contexto fornecido; quando o contexto não cobrir a pergunta, diga isso " +
			"explicitamente e recomende consultar o PCDT vigente. Cite doses, esquemas e " +
			"contraindicações exatamente como constam no contexto.",
		fallbackIntro: "Segundo o material de referência sobre o roteiro de dispensação:",
		fallbackEmpty: "Não localizei essa informação no material de referência disponível. " +
			"Recomendo consultar o PCDT de hanseníase vigente ou um farmacêutico clínico " +
			"antes de qualquer conduta.",
	},
	Ga: {
		ID:          Ga,
		Name:        "Gá",
		Description: "Linguagem simples e acolhedora, voltada a pacientes e cuidadores.",
		SystemPrompt: "Você é o Gá, um assistente acolhedor que explica o tratamento da hanseníase " +
			"em linguagem simples, sem jargão técnico. Responda em português, com empatia e " +
			"frases curtas. Use apenas o contexto fornecido; se ele não responder à pergunta, " +
			"diga com carinho que não sabe e oriente a pessoa a conversar com o farmacêutico " +
			"ou a equipe de saúde. Nunca invente doses ou orientações clínicas.",
		fallbackIntro: "Olha o que encontrei no material sobre o tratamento:",
		fallbackEmpty: "Não encontrei essa resposta no meu material, mas não se preocupe! " +
			"Converse com o farmacêutico ou com a equipe de saúde que acompanha você — " +
			"eles vão saber orientar direitinho.",
	},
}

// Lookup returns the persona for id. The boolean reports membership in the
// closed set.
func Lookup(id string) (Persona, bool) {
	p, ok := registry[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// All returns every known persona ordered by ID.
func All() []Persona {
	personas := make([]Persona, 0, len(registry))
	for _, p := range registry {
		personas = append(personas, p)
	}
	sort.Slice(personas, func(i, j int) bool { return personas[i].ID < personas[j].ID })
	return personas
}

// IDs returns the sorted persona identifiers, for error messages.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FallbackAnswer builds the canned answer used when the LLM is skipped or
// fails. topChunkText is the best retrieved chunk, empty when retrieval
// found nothing.
func (p Persona) FallbackAnswer(topChunkText string) string {
	if strings.TrimSpace(topChunkText) == "" {
		return p.fallbackEmpty
	}
	return fmt.Sprintf("%s\n\n%s", p.fallbackIntro, topChunkText)
}
