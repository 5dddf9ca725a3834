// Package server runs the short-lived local HTTP server that receives OAuth callbacks.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] uses
// [http.ServeMux] internally and chains [Middleware] with alice, the first added being the outermost.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, hands the authorization code to an [ExchangeFunc]
// and reports the outcome through a channel. It only processes one callback.
//
// The auth commands start the server on the configured address, open the consent page and shut the
// server down after the first callback.
package server
