package tokensource

const (
	// TokenURL is the Podio OAuth2 token endpoint used for the app flow.
	TokenURL = "https://podio.com/oauth/token"

	// TokenType is sent with every resource request ("Authorization: OAuth2 <token>").
	TokenType = "OAuth2"
)
