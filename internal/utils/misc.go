package utils

func Contains(slice []string, value string) bool {
	for _, item := range slice {
		if item == value {
			return true
		}
	}
	return false
}

func RemoveItem[S ~[]E, E comparable](s S, values ...E) S {
	result := make(S, 0, len(s))
outer:
	for _, item := range s {
		for _, v := range values {
			if item == v {
				continue outer
			}
		}
		result = append(result, item)
	}
	return result
}

// Mask hides the middle of a credential for logging.
func Mask(text string) string {
	if len(text) > 12 {
		return text[:8] + "****" + text[len(text)-4:]
	}
	if len(text) > 8 {
		return text[:4] + "****" + text[len(text)-2:]
	}
	return "****"
}
