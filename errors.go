package goSession

import "errors"

var (
	// ErrProviderRequired is returned by Build when no identity provider was configured.
	ErrProviderRequired = errors.New("identity provider required")
	// ErrManagerClosed is returned by operations started after Close.
	ErrManagerClosed = errors.New("session manager closed")
	// ErrManagerNotReady is returned when a Manager was not created through Build.
	ErrManagerNotReady = errors.New("session manager not initialized")
	// ErrSubscriptionFailed wraps provider errors from OnAuthStateChange.
	ErrSubscriptionFailed = errors.New("auth state subscription failed")
	// ErrSignOutFailed wraps provider errors from SignOut.
	ErrSignOutFailed = errors.New("sign out failed")
	// ErrRefreshFailed wraps provider errors from RefreshSession in an Invalidation.
	ErrRefreshFailed = errors.New("session refresh failed")
	// ErrExpiryUnknown is reported when neither the session nor its access token carries an expiry.
	ErrExpiryUnknown = errors.New("session expiry unknown")
	// ErrBuilderUsed is returned when Build is called twice on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)
