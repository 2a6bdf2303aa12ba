package transfer

import "github.com/golang-jwt/jwt/v5"

type PostCreation struct {
	Content      string
	ScheduledFor string
}

// PostResult is the outcome of one publish attempt inside a sweep.
type PostResult struct {
	PostID int64  `json:"id"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const (
	ResultPublished  = "published"
	ResultFailed     = "failed"
	ResultSkipped    = "skipped"
	ResultStoreError = "store_error"
)

// SweepSummary is returned by the publish-due trigger endpoint.
type SweepSummary struct {
	Processed int          `json:"processed"`
	Results   []PostResult `json:"results"`
}

type CustomClaims struct {
	UserID string `json:"user_id"`
	// CodeVerifier carries the PKCE verifier through the OAuth state
	// parameter so the callback can finish the exchange statelessly.
	CodeVerifier string `json:"code_verifier,omitempty"`
	jwt.RegisteredClaims
}
