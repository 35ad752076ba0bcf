// Package mwapi provides a minimal MediaWiki Action API client for metadata calls.
//
// The REST client in package mwrest uses it to fetch edit (CSRF) tokens and site
// information from the api.php endpoint that sits next to rest.php. It keeps the
// mw.Api-like workflow (NewClient -> Get) and leaves token caching to the caller.
package mwapi
