package config

// Overrides carries the per-request credential and collection overrides a
// caller may supply instead of using the server's defaults.
type Overrides struct {
	MistralAPIKey string
	StoreURI      string
	StoreToken    string
	Collection    string
}

// Any reports whether at least one override field is non-empty. A true
// result means the request needs its own ephemeral store handle.
func (o Overrides) Any() bool {
	return o.MistralAPIKey != "" || o.StoreURI != "" || o.StoreToken != "" || o.Collection != ""
}

// Bundle is the set of effective values for one operation. Resolved per
// request and never persisted.
type Bundle struct {
	MistralAPIKey string
	StoreURI      string
	StoreToken    string
	Collection    string
}

// Resolve returns the effective bundle for one operation.
//
// Precedence per field: request override > process configuration (which was
// itself env-sourced at Load) > built-in default. Only the collection name
// has a non-empty built-in default; the credential fields resolve to the
// empty string when absent and are passed through unchanged.
func (c *Config) Resolve(o Overrides) Bundle {
	b := Bundle{
		MistralAPIKey: c.Embedding.APIKey.Value(),
		StoreURI:      c.Store.URI,
		StoreToken:    c.Store.Token.Value(),
		Collection:    c.Store.Collection,
	}
	if o.MistralAPIKey != "" {
		b.MistralAPIKey = o.MistralAPIKey
	}
	if o.StoreURI != "" {
		b.StoreURI = o.StoreURI
	}
	if o.StoreToken != "" {
		b.StoreToken = o.StoreToken
	}
	if o.Collection != "" {
		b.Collection = o.Collection
	}
	if b.Collection == "" {
		b.Collection = DefaultCollection
	}
	return b
}
