// Package oidc implements the client side of the OpenID Connect protocol
// suite as a set of request services: Authorization, AccessToken,
// RefreshAccessToken, ProviderInfoDiscovery, Registration, UserInfo,
// CheckSession, CheckID and EndSession. Each service constructs a validated
// request record from client and session state, renders it to an HTTP
// request with the appropriate client authentication method applied, and
// post-processes the provider's response (nonce verification, provider
// preference negotiation, registration bookkeeping, aggregated/distributed
// claims resolution).
package oidc
