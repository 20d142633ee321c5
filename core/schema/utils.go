package schema

// FindField looks a field up by its declared name rather than its map key.
func (s *SchemaDefinition) FindField(name string) *FieldDefinition {
	for _, field := range s.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// BoolPtr returns a pointer to b, for building field definitions in code.
func BoolPtr(b bool) *bool {
	return &b
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
