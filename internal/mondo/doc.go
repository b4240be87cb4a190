// Package mondo is a client for the Mondo banking API.
//
// # Overview
//
// A Client holds the OAuth2 application credentials and the token state of
// one logged-in user. It provides:
//  1. The token lifecycle: AuthorizationURL, ExchangeCode, RefreshToken and
//     AdoptTokens (hydrating a client from a persisted Token record).
//  2. A single authenticated request primitive, Request, which checks token
//     freshness, refreshes a stale access token first, sends the bearer token
//     and maps non-2xx responses to *APIError.
//  3. Typed resource methods built on Request: Whoami, ListAccounts, Balance,
//     transactions and annotations, feed items, webhooks and attachments.
//
// # Account scope
//
// Account-relative calls use the client's stored account id. Methods taking
// an accountID argument replace the stored scope when the argument is
// non-empty; AdoptTokens resolves the scope from the first listed account
// when the record carries none.
//
// # Errors
//
// Rejected code exchanges and refreshes surface as *AuthError, failed
// resource calls as *APIError. Neither is retried. ErrNoToken and
// ErrNoAccount report missing preconditions and match with errors.Is.
//
// # Concurrency
//
// A Client serves one user session. Token state is guarded by a mutex, so a
// freshness check and the refresh it triggers are never interleaved with
// another caller's check.
package mondo
