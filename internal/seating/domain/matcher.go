package seating

import "strings"

// Candidate is a registration a row can be matched to.
type Candidate struct {
	ID             string
	Type           ParticipantType
	RegistrationID string
	Name           string
	NormalizedName string
	GroupName      string

	normalizedGroup string
}

// NewCandidate builds a candidate with its normalized keys.
func NewCandidate(id string, participantType ParticipantType, registrationID, name, groupName string) Candidate {
	return Candidate{
		ID:              id,
		Type:            participantType,
		RegistrationID:  registrationID,
		Name:            name,
		NormalizedName:  Normalize(name),
		GroupName:       groupName,
		normalizedGroup: Normalize(groupName),
	}
}

// MatchInput is the identifying part of an import row.
type MatchInput struct {
	RegistrationID string
	Name           string
	GroupName      string
	// Type restricts matching to one participant type when set.
	Type ParticipantType
}

// Normalize lowercases s and drops every character outside [a-z0-9].
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Match resolves a row to exactly one candidate. A registration id wins over
// the name; when it matches nothing the name is tried instead. Several name
// matches are narrowed by group name containment.
func Match(input MatchInput, candidates []Candidate) (Candidate, error) {
	regID := strings.TrimSpace(input.RegistrationID)
	name := strings.TrimSpace(input.Name)

	if regID != "" {
		for _, candidate := range candidates {
			if input.Type != "" && candidate.Type != input.Type {
				continue
			}
			if strings.EqualFold(candidate.RegistrationID, regID) || strings.EqualFold(candidate.ID, regID) {
				return candidate, nil
			}
		}
		if name == "" {
			return Candidate{}, &ParticipantNotFoundError{Identifier: regID}
		}
	}

	if name == "" {
		return Candidate{}, &MissingIdentifierError{}
	}
	key := Normalize(name)
	if key == "" {
		return Candidate{}, &ParticipantNotFoundError{Identifier: name}
	}

	var matches []Candidate
	for _, candidate := range candidates {
		if input.Type != "" && candidate.Type != input.Type {
			continue
		}
		if candidate.NormalizedName == key {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return Candidate{}, &ParticipantNotFoundError{Identifier: name}
	case 1:
		return matches[0], nil
	}

	if group := Normalize(input.GroupName); group != "" {
		var narrowed []Candidate
		for _, candidate := range matches {
			if candidate.normalizedGroup != "" && strings.Contains(candidate.normalizedGroup, group) {
				narrowed = append(narrowed, candidate)
			}
		}
		if len(narrowed) == 1 {
			return narrowed[0], nil
		}
	}
	return Candidate{}, &AmbiguousParticipantError{Name: name, Matches: len(matches)}
}
