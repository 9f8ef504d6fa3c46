package postfan

// Publication is the provider-neutral body of an immediate post.
type Publication struct {
	Kind      ContentKind
	VideoURL  string
	ImageURLs []string
	Text      string
}

// ProviderResult is one account's outcome as reported by a provider
// endpoint, before classification.
type ProviderResult struct {
	AccountID string
	Success   bool
	Ref       string
	Message   string
	Code      string
}

// PublishResponse is a provider call normalized to per-account results.
type PublishResponse struct {
	StatusCode int
	Results    []ProviderResult
	PostID     string
}
