package util

// FalseIfNil safely dereferences a bool pointer.
func FalseIfNil(b *bool) bool {
	if b == nil {
		return false
	}

	return *b
}
