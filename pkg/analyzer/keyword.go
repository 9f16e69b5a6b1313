package analyzer

import (
	"strings"

	"github.com/soundprediction/akgraph/pkg/types"
)

// domainKeywords score a document against each known domain.
var domainKeywords = map[string][]string{
	"technical": {"api", "code", "function", "class", "method", "algorithm", "implementation", "config", "setup"},
	"business":  {"meeting", "project", "budget", "team", "manager", "strategy", "goal", "objective"},
	"legal":     {"contract", "agreement", "clause", "term", "obligation", "party", "liability", "compliance"},
	"academic":  {"research", "study", "analysis", "methodology", "findings", "citation", "paper", "thesis"},
	"medical":   {"patient", "diagnosis", "treatment", "symptoms", "medication", "health", "clinical"},
	"financial": {"revenue", "cost", "budget", "investment", "profit", "financial", "accounting"},
}

// domainTypes are the expected type vocabularies per domain. Unknown
// domains fall back to the business vocabulary.
var domainTypes = map[string]struct {
	entities      []string
	relationships []string
}{
	"technical": {
		entities:      []string{"FUNCTION", "CLASS", "METHOD", "VARIABLE", "API", "SERVICE", "COMPONENT", "MODULE"},
		relationships: []string{"CALLS", "INHERITS_FROM", "IMPLEMENTS", "DEPENDS_ON", "CONFIGURES", "RETURNS", "USES", "EXTENDS"},
	},
	"business": {
		entities:      []string{"PERSON", "PROJECT", "TEAM", "DEPARTMENT", "GOAL", "TASK", "BUDGET", "TIMELINE"},
		relationships: []string{"MANAGES", "WORKS_ON", "REPORTS_TO", "ASSIGNED_TO", "RESPONSIBLE_FOR", "PARTICIPATES_IN", "OWNS", "APPROVES"},
	},
	"legal": {
		entities:      []string{"PARTY", "CONTRACT", "CLAUSE", "OBLIGATION", "RIGHT", "TERM", "DATE", "AMOUNT"},
		relationships: []string{"BOUND_BY", "OBLIGATED_TO", "ENTITLED_TO", "GOVERNED_BY", "REFERS_TO", "MODIFIES", "SUPERSEDES", "EFFECTIVE_FROM"},
	},
	"academic": {
		entities:      []string{"AUTHOR", "PAPER", "CONCEPT", "METHODOLOGY", "FINDING", "CITATION", "INSTITUTION", "JOURNAL"},
		relationships: []string{"AUTHORED_BY", "CITES", "STUDIES", "PROPOSES", "DEMONSTRATES", "VALIDATES", "CONTRADICTS", "BUILDS_ON"},
	},
	"medical": {
		entities:      []string{"PATIENT", "DIAGNOSIS", "TREATMENT", "MEDICATION", "SYMPTOM", "PROCEDURE", "DOCTOR", "CONDITION"},
		relationships: []string{"DIAGNOSED_WITH", "TREATED_WITH", "PRESCRIBED", "EXHIBITS", "PERFORMED_ON", "INDICATES", "CAUSES", "PREVENTS"},
	},
	"financial": {
		entities:      []string{"ACCOUNT", "TRANSACTION", "AMOUNT", "BUDGET", "REVENUE", "EXPENSE", "INVESTMENT", "PORTFOLIO"},
		relationships: []string{"DEBITED_FROM", "CREDITED_TO", "ALLOCATED_TO", "GENERATED_BY", "INVESTED_IN", "COSTS", "YIELDS", "TRANSFERS_TO"},
	},
}

// keywordAnalysis classifies a document by counting domain keyword hits in
// the title and content. Confidence is fixed below LLM analysis so a later
// LLM pass can supersede the cached entry.
func keywordAnalysis(doc *types.Document) *types.DocumentAnalysis {
	content := strings.ToLower(doc.Content)
	title := strings.ToLower(doc.Title)

	bestDomain := "general"
	bestScore := 0
	for domain, keywords := range domainKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(content, kw) || strings.Contains(title, kw) {
				score++
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && domain < bestDomain) {
			bestDomain = domain
			bestScore = score
		}
	}

	mapping, ok := domainTypes[bestDomain]
	if !ok {
		mapping = domainTypes["business"]
	}

	return &types.DocumentAnalysis{
		Domain:            bestDomain,
		Subdomain:         "general",
		Description:       bestDomain + " document",
		EntityTypes:       append([]string(nil), mapping.entities...),
		RelationshipTypes: append([]string(nil), mapping.relationships...),
		Confidence:        0.7,
		Method:            MethodKeyword,
	}
}
