// Package auth provides request authentication for the HTTP surface.
//
// Authenticators vote with a three-outcome decision (Yes, No, Abstain) and
// are evaluated as a chain: the first non-abstaining authenticator decides.
// A local development setup runs with the chain's default decision set to
// Yes, which admits every request under an anonymous identity.
//
// Concrete authenticators live in subpackages: noop (accept everything),
// apikey (static bearer keys, hashed at load), and jwt (HS256 shared secret
// or RS256 against a JWKS endpoint).
package auth
