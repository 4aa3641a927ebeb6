package validation

import "npitrack/internal/models"

// Enum values - these MUST match the CHECK constraints in internal/store.
var (
	ValidMatrixKinds = func() []string {
		out := make([]string, len(models.MatrixKinds))
		for i, k := range models.MatrixKinds {
			out[i] = string(k)
		}
		return out
	}()
	ValidCategories = models.Categories
)
