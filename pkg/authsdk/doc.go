/*
Package authsdk is the Go client for the account session service, and the
home of the wire types and error body the service itself writes.

# SDKClient vs Session

SDKClient covers the public endpoints:

	client := authsdk.NewSDKClient("https://auth.example.com")

	profile, err := client.Register(ctx, authsdk.RegisterRequest{
		FullName: "Ann", Email: "ann@example.com", Password: "secret",
	})

	session, err := client.Login(ctx, "ann@example.com", "secret")

	err = client.ForgotPassword(ctx, "ann@example.com")
	err = client.ResetPassword(ctx, secretFromLink, "new-secret")

A Session carries the token pair and refreshes the access token shortly
before it expires:

	me, err := session.CurrentUser(ctx)
	err = session.ChangePassword(ctx, "secret", "new-secret")
	err = session.Logout(ctx)

Refresh tokens rotate on every use. Presenting a token that has already
been exchanged fails with ErrInvalidToken.

# Errors

Every failed call returns an *APIError. Compare with errors.Is against the
predefined values, which match on the error code:

	if errors.Is(err, authsdk.ErrInvalidCredentials) { ... }
*/
package authsdk
