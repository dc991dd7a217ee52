// Package nodio is a client for the Podio REST API authenticated with the app
// flow.
//
// A Client owns one set of app credentials and the access token obtained for
// them. The token is fetched lazily before the first request and renewed
// transparently once it expires, so a call made after expiry costs one extra
// round trip to the token endpoint.
//
//	client, err := nodio.New(nodio.Credentials{
//		AppID:        "1234",
//		AppToken:     os.Getenv("PODIO_APP_TOKEN"),
//		ClientID:     "my-client",
//		ClientSecret: os.Getenv("PODIO_CLIENT_SECRET"),
//	})
//	if err != nil {
//		var missing *nodio.MissingCredentialError
//		if errors.As(err, &missing) {
//			log.Fatalf("missing %s", missing.Field)
//		}
//		log.Fatal(err)
//	}
//
//	item, err := nodio.Decode[map[string]any](client.Items.Get(ctx, 42))
//
// Calls return either data or an error, never both. Token exchange failures are
// reported as *AuthenticationError and no resource request is attempted;
// unsuccessful resource responses are reported as *RequestError.
package nodio
