package generation

// Store is a provider for versioned cache generations.
// It stores and retrieves []byte values, which represent serialized HTTP
// responses, keyed by a request key within a named generation.
// Keeping entries scoped to a generation is what makes wholesale eviction
// of superseded generations possible.
//
// Implementations must be thread-safe!
type Store interface {
	// Open creates the named generation if it does not exist yet.
	// Opening an existing generation is a no-op.
	Open(generation string) error
	// Put stores the given response bytes under the given key.
	Put(generation, key string, bytes []byte) error
	// Get returns the stored bytes for the given key, if they exist.
	// It also returns a boolean indicating whether retrieval was successful.
	Get(generation, key string) ([]byte, bool, error)
	// Has checks if the specified key exists in the given generation.
	Has(generation, key string) bool
	// Generations returns the ids of all generations in the store,
	// including generations that were opened but never written to.
	Generations() ([]string, error)
	// Delete removes the named generation and all of its entries.
	Delete(generation string) error
}
