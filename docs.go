// rp provides packages for building OpenID Connect / OAuth2 relying-party
// clients: constructing protocol requests, negotiating provider capabilities
// and processing provider responses, including distributed claims.
package rp
