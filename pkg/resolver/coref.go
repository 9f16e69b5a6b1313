package resolver

import (
	"log/slog"
	"strings"

	"github.com/soundprediction/akgraph/pkg/similarity"
	"github.com/soundprediction/akgraph/pkg/types"
)

// Referent categories pronouns and generic references resolve through.
const (
	refOrganization = "ORGANIZATION"
	refService      = "SERVICE"
	refUser         = "USER"
	refDocument     = "POLICY_DOCUMENT"
	refData         = "DATA"
	refPerson       = "PERSON"
	// refContextual marks pronouns with no reliable category ("they",
	// "it"). They are left alone rather than guessed at.
	refContextual = "CONTEXTUAL"
)

// pronounCategory maps pronoun surface forms to the referent category they
// usually stand for. First person points at the organization speaking,
// second person at its users.
var pronounCategory = map[string]string{
	"we": refOrganization, "us": refOrganization,
	"our": refOrganization, "ourselves": refOrganization,

	"you": refUser, "your": refUser, "yours": refUser,
	"yourself": refUser, "yourselves": refUser,

	"they": refContextual, "them": refContextual, "their": refContextual,
	"theirs": refContextual, "themselves": refContextual,
	"it": refContextual, "its": refContextual, "itself": refContextual,

	"he": refPerson, "him": refPerson, "his": refPerson, "himself": refPerson,
	"she": refPerson, "her": refPerson, "hers": refPerson, "herself": refPerson,
}

// genericCategory maps generic reference phrases to referent categories.
// Multi-word phrases also match when contained in a longer name.
var genericCategory = map[string]string{
	"the company": refOrganization, "the organization": refOrganization,
	"the business": refOrganization, "the entity": refOrganization,

	"the platform": refService, "the service": refService,
	"the services": refService, "the system": refService,
	"the application": refService, "the app": refService,
	"the software": refService, "the product": refService,

	"the user": refUser, "the users": refUser,
	"the customer": refUser, "the customers": refUser,
	"the individual": refUser, "the person": refUser,

	"the policy": refDocument, "this policy": refDocument,
	"the document": refDocument, "the agreement": refDocument,
	"the terms": refDocument,

	"the data": refData, "the information": refData,
	"such information": refData, "such data": refData,
}

// typeCategory keyword table: a candidate whose type contains the keyword
// can serve as a referent for the category.
var typeCategory = []struct {
	keyword  string
	category string
}{
	{"organization", refOrganization},
	{"company", refOrganization},
	{"service", refService},
	{"platform", refService},
	{"system", refService},
	{"application", refService},
	{"product", refService},
	{"user", refUser},
	{"customer", refUser},
	{"policy", refDocument},
	{"document", refDocument},
	{"agreement", refDocument},
	{"data", refData},
	{"information", refData},
	{"person", refPerson},
}

// Coref rewrites pronoun and generic-reference candidates to the concrete
// entities they refer to, before entity resolution runs. "We updated the
// service" then strengthens the organization node instead of minting a
// "we" entity. Candidates with no referent in the chunk are left alone.
type Coref struct {
	logger *slog.Logger
}

// NewCoref returns a coreference rewriter.
func NewCoref(logger *slog.Logger) *Coref {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coref{logger: logger}
}

// Rewrite resolves coreferent candidates in one chunk's extraction output.
// Pronouns and generic references are replaced by the best concrete
// candidate of the matching category from the same chunk; relationship
// endpoints naming a rewritten candidate follow it.
func (c *Coref) Rewrite(entities []types.CandidateEntity, relationships []types.CandidateRelationship) ([]types.CandidateEntity, []types.CandidateRelationship) {
	if len(entities) == 0 {
		return entities, relationships
	}

	referents := referentsByCategory(entities)

	out := make([]types.CandidateEntity, 0, len(entities))
	// aliases maps a rewritten candidate's normalized surface form to the
	// referent name, for relationship endpoint rewriting
	aliases := make(map[string]string)

	for _, candidate := range entities {
		category, ok := referenceCategory(candidate.Name)
		if !ok || category == refContextual {
			out = append(out, candidate)
			continue
		}
		referent, ok := referents[category]
		if !ok {
			out = append(out, candidate)
			continue
		}

		rewritten := referent
		rewritten.Properties = candidate.Properties
		if candidate.Confidence > rewritten.Confidence {
			rewritten.Confidence = candidate.Confidence
		}
		rewritten.Aliases = appendAlias(referent.Aliases, candidate.Name)

		aliases[similarity.Normalize(candidate.Name)] = referent.Name
		c.logger.Debug("coreference resolved",
			"from", candidate.Name, "to", referent.Name, "category", category)
		out = append(out, rewritten)
	}

	if len(aliases) == 0 {
		return out, relationships
	}
	rewrittenRels := make([]types.CandidateRelationship, len(relationships))
	for i, rel := range relationships {
		if name, ok := aliases[similarity.Normalize(rel.SourceName)]; ok {
			rel.SourceName = name
		}
		if name, ok := aliases[similarity.Normalize(rel.TargetName)]; ok {
			rel.TargetName = name
		}
		rewrittenRels[i] = rel
	}
	return out, rewrittenRels
}

// referenceCategory classifies a candidate name as a pronoun or generic
// reference. Multi-word generic phrases also match as a prefix of longer
// names ("the company's processors").
func referenceCategory(name string) (string, bool) {
	normalized := similarity.Normalize(name)
	if category, ok := pronounCategory[normalized]; ok {
		return category, true
	}
	if category, ok := genericCategory[normalized]; ok {
		return category, true
	}
	for phrase, category := range genericCategory {
		if strings.Contains(phrase, " ") && strings.Contains(normalized, phrase) {
			return category, true
		}
	}
	return "", false
}

// referentsByCategory picks, per category, the highest-confidence concrete
// candidate that can serve as a referent. Pronouns and generic references
// never refer to each other.
func referentsByCategory(entities []types.CandidateEntity) map[string]types.CandidateEntity {
	referents := make(map[string]types.CandidateEntity)
	for _, candidate := range entities {
		if _, isRef := referenceCategory(candidate.Name); isRef {
			continue
		}
		loweredType := strings.ToLower(candidate.Type)
		for _, tc := range typeCategory {
			if !strings.Contains(loweredType, tc.keyword) {
				continue
			}
			if best, ok := referents[tc.category]; !ok || candidate.Confidence > best.Confidence {
				referents[tc.category] = candidate
			}
		}
	}
	return referents
}

func appendAlias(aliases []string, name string) []string {
	for _, a := range aliases {
		if a == name {
			return aliases
		}
	}
	out := make([]string, 0, len(aliases)+1)
	out = append(out, aliases...)
	return append(out, name)
}
