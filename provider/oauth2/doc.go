// Package oauth2 adapts a standard OAuth 2.0 authorization server to
// [goSession.Provider] using golang.org/x/oauth2.
//
// Sign-in uses the authorization code flow with PKCE ([Provider.AuthCodeURL] then
// [Provider.Exchange]). RefreshSession always performs a refresh_token grant, even when
// the stored access token is still valid, because the lifecycle manager decides when a
// refresh is due. SignOut optionally revokes the refresh token (RFC 7009).
package oauth2
