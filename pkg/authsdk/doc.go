/*
Package authsdk provides a client SDK and the shared wire types for the doorman
authentication service.

# SDKClient vs Session

  - SDKClient: unauthenticated operations (register, login, refresh, health)
  - Session: authenticated operations with automatic access token refresh

	client := authsdk.NewSDKClient("https://auth.example.com")

	_, err := client.Register(ctx, authsdk.RegisterRequest{
		Email:      "ana@example.com",
		Password:   "Sup3rsecret",
		GivenName:  "Ana",
		FamilyName: "Lopez",
	})

	session, err := client.AuthenticateWithPassword(ctx, "ana@example.com", "Sup3rsecret")
	me, err := session.Me(ctx)
	err = session.Logout(ctx)

# Errors

Server failures decode into *APIError. Compare them with errors.Is against the
predefined values:

	if errors.Is(err, authsdk.ErrInvalidCredentials) { ... }

Validation failures decode into *ValidationError with per-field messages.
RegisterRequest.Validate applies the same rules locally, and the server uses
it for request validation.
*/
package authsdk
