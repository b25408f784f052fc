package models

// CollectedInformation is the accumulating key/value structure a
// json_dialog step builds across turns. Keys are domain fields (company
// name, announcement type) plus bookkeeping entries; there is no fixed
// schema.
type CollectedInformation map[string]interface{}

// Merge folds newer values over the existing map without dropping fields
// collected on earlier turns. Nested maps merge recursively; any other
// value is replaced. Empty-string values never overwrite a non-empty one.
func (c CollectedInformation) Merge(updates map[string]interface{}) CollectedInformation {
	if c == nil {
		c = make(CollectedInformation)
	}
	for key, value := range updates {
		if s, ok := value.(string); ok && s == "" {
			if _, exists := c[key]; exists {
				continue
			}
		}
		if newNested, ok := value.(map[string]interface{}); ok {
			if oldNested, ok := c[key].(map[string]interface{}); ok {
				c[key] = map[string]interface{}(CollectedInformation(oldNested).Merge(newNested))
				continue
			}
		}
		c[key] = value
	}
	return c
}

// HasAll reports whether every named field is present and non-empty
func (c CollectedInformation) HasAll(fields []string) bool {
	for _, field := range fields {
		v, ok := c[field]
		if !ok || v == nil {
			return false
		}
		if s, ok := v.(string); ok && s == "" {
			return false
		}
	}
	return true
}

// Copy returns a shallow copy so callers can snapshot a turn's state
func (c CollectedInformation) Copy() CollectedInformation {
	out := make(CollectedInformation, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
