package reconcile

import "fmt"

// ValidateFinal checks the structural contract of an authoritative payload:
// the collection exists, is a non-empty array, and every element is an
// object carrying string values for the name and content keys. It does not
// look at what the content says.
func ValidateFinal(tree any, schema Schema) error {
	coll, ok := Extract(tree, schema.CollectionPath, nil).([]any)
	if !ok {
		return fmt.Errorf("%q must be an array: %w", schema.CollectionPath, ErrContractViolation)
	}
	if len(coll) == 0 {
		return fmt.Errorf("%q must not be empty: %w", schema.CollectionPath, ErrContractViolation)
	}
	for i, el := range coll {
		obj, ok := el.(map[string]any)
		if !ok {
			return fmt.Errorf("%s.%d must be an object, got %T: %w", schema.CollectionPath, i, el, ErrContractViolation)
		}
		for _, key := range []string{schema.NameKey, schema.ContentKey} {
			if _, ok := obj[key].(string); !ok {
				return fmt.Errorf("%s.%d.%s must be a string: %w", schema.CollectionPath, i, key, ErrContractViolation)
			}
		}
	}
	return nil
}
