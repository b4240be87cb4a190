// Package setupaccess walks a user through obtaining a token record from
// the terminal.
//
// The helper asks for whatever client credentials the configuration lacks,
// opens the authorization page in a browser and waits for the user to paste
// back the URL the provider redirected to. The code in that URL is exchanged
// for a token pair, the account scope is resolved and the record is saved to
// the configured token store.
package setupaccess
