package nodio

import (
	"github.com/florianilch/nodio/internal/credentials"
	"github.com/florianilch/nodio/internal/dispatch"
	"github.com/florianilch/nodio/internal/tokensource"
)

type (
	// MissingCredentialError is returned by New when an identity field is
	// absent and no valid access token was supplied.
	MissingCredentialError = credentials.MissingCredentialError

	// AuthenticationError is returned when the token exchange is rejected or
	// the token endpoint cannot be reached.
	AuthenticationError = tokensource.AuthenticationError

	// RequestError is returned when the API answers with a status other than
	// 200 or 201, or the request could not be sent.
	RequestError = dispatch.RequestError
)

// ErrUnknownVerb is returned by Client.Handle for an unsupported Verb.
var ErrUnknownVerb = dispatch.ErrUnknownVerb
