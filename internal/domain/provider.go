package domain

// Provider identifies an external generation backend.
type Provider string

// Known generation backends.
const (
	// ProviderMeshy is the two-phase text-to-3D backend (preview + refine).
	ProviderMeshy Provider = "meshy"

	// ProviderComposite is the single-phase composite mesh backend.
	ProviderComposite Provider = "composite"

	// ProviderGenerative is the single-phase generative mesh backend whose
	// result endpoint may return not-found before a submitted job is indexed.
	ProviderGenerative Provider = "generative"

	// ProviderAudio is the audio synthesis backend.
	ProviderAudio Provider = "audio"
)

// isValidProvider checks if the given provider is a known backend.
func isValidProvider(p Provider) bool {
	switch p {
	case ProviderMeshy, ProviderComposite, ProviderGenerative, ProviderAudio:
		return true
	default:
		return false
	}
}

// Category distinguishes the two product surfaces a generation belongs to.
type Category string

// Possible category values.
const (
	CategoryMesh  Category = "mesh"
	CategoryAudio Category = "audio"
)

// isValidCategory checks if the given category is valid.
func isValidCategory(c Category) bool {
	return c == CategoryMesh || c == CategoryAudio
}
