package graph

// As filters props down to those of type T, preserving order.
func As[T Property](props []Property) []T {
	result := make([]T, 0, len(props))
	for _, p := range props {
		if t, ok := p.(T); ok {
			result = append(result, t)
		}
	}
	return result
}

// RefAs returns the reference called name typed as T, or the zero value.
func RefAs[T Property](b *Base, name string) T {
	t, _ := b.Ref(name).(T)
	return t
}

// ExtensionAs returns the extension called name typed as T, or the zero value.
func ExtensionAs[T Property](b *Base, name string) T {
	t, _ := b.Extension(name).(T)
	return t
}
