// Package jwt reads expiry and identity claims from provider-issued access tokens.
//
// Identity providers normally report an absolute expiry with each session. When one does
// not, the lifecycle manager falls back to the access token's exp claim. Signature checks
// are optional: the client only needs the expiry to schedule a refresh, while the
// provider remains the authority on validity.
package jwt
