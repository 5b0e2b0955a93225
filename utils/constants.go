package utils

// Import pipeline constants
const (
	// MaxBatchOps is the store operation ceiling per batch commit
	MaxBatchOps = 400

	// LinkCreateMaxAttempts bounds link id create retries (initial attempt
	// plus one retry after a collision)
	LinkCreateMaxAttempts = 2

	// DefaultCountry is assumed for rows without a country column
	DefaultCountry = "DE"

	// GeocodeCountryHint biases geocoding results
	GeocodeCountryHint = "DE"
)
