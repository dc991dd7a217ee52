// Package credentials holds the identity of a Podio app together with the
// access token state obtained for it.
//
// A Credentials value is created once per client and owned by it. The identity
// fields never change after construction; the token triple (access token,
// lifetime, issue time) is replaced as a whole after every successful token
// exchange.
//
// # Validity
//
// A cached access token is valid while now < issuedAt + expiresIn. At the exact
// boundary the token is already stale:
//
//	creds, err := credentials.New(credentials.Config{
//		AppID:        "123",
//		AppToken:     "app-token",
//		ClientID:     "client",
//		ClientSecret: "secret",
//	})
//	if token, ok := creds.Valid(); ok {
//		// attach token
//	}
package credentials
