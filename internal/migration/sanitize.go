package migration

// sanitizeText normalizes a nullable text column to a safe value: NULL
// becomes the empty string, anything else passes through unchanged. The
// panel schema requires non-null text fields.
func sanitizeText(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
