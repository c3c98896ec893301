package model

// BusinessIdentity is the set of ids that represent the practice itself on a
// platform. A message sent by one of these ids is outbound.
type BusinessIdentity struct {
	names map[string]string
}

func NewBusinessIdentity() BusinessIdentity {
	return BusinessIdentity{names: make(map[string]string)}
}

// With returns a copy of the identity with id added under the given display name.
func (b BusinessIdentity) With(id, displayName string) BusinessIdentity {
	names := make(map[string]string, len(b.names)+1)
	for k, v := range b.names {
		names[k] = v
	}
	if id != "" {
		names[id] = displayName
	}
	return BusinessIdentity{names: names}
}

// IsBusinessSender reports whether id belongs to the practice.
func (b BusinessIdentity) IsBusinessSender(id string) bool {
	if id == "" {
		return false
	}
	_, ok := b.names[id]
	return ok
}

// DisplayName returns the configured name for a business id.
func (b BusinessIdentity) DisplayName(id string) (string, bool) {
	name, ok := b.names[id]
	return name, ok
}

// IDs returns the configured business ids.
func (b BusinessIdentity) IDs() []string {
	ids := make([]string, 0, len(b.names))
	for id := range b.names {
		ids = append(ids, id)
	}
	return ids
}
