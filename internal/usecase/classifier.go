package usecase

import (
	"strings"

	"trafficlaw-gateway/internal/domain/entity"
)

// Classifier decides whether a prompt is small talk or a traffic-law
// question. Domain keywords win over social keywords.
type Classifier struct {
	domain         []string
	social         []string
	socialMaxWords int
	domainMinWords int
}

func NewClassifier(p Profile) *Classifier {
	return &Classifier{
		domain:         lowerAll(p.DomainKeywords),
		social:         lowerAll(p.SocialKeywords),
		socialMaxWords: p.SocialMaxWords,
		domainMinWords: p.DomainMinWords,
	}
}

func (c *Classifier) Classify(text string) entity.Intent {
	lower := strings.ToLower(text)
	words := len(strings.Fields(lower))

	switch {
	case containsAny(lower, c.domain):
		return entity.IntentDomain
	case containsAny(lower, c.social) && words < c.socialMaxWords:
		return entity.IntentSocial
	case words > c.domainMinWords:
		return entity.IntentDomain
	default:
		return entity.IntentSocial
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
