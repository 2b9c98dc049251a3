package uniform

// MemberAccessor addresses one sub-field of one array instance of a packed member.
type MemberAccessor struct {
	Member     int
	ArrayIndex int
	FieldIndex int
}

// Accessor returns an accessor for field 0 of instance 0 of a member.
//
// Parameters:
//   - member: the member index in declaration order
//
// Returns:
//   - MemberAccessor: the accessor
func Accessor(member int) MemberAccessor {
	return MemberAccessor{Member: member}
}

// At returns a copy of the accessor pointing at another array instance.
func (a MemberAccessor) At(arrayIndex int) MemberAccessor {
	a.ArrayIndex = arrayIndex
	return a
}

// Field returns a copy of the accessor pointing at another sub-field.
func (a MemberAccessor) Field(fieldIndex int) MemberAccessor {
	a.FieldIndex = fieldIndex
	return a
}
