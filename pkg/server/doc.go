// Package server hosts state synchronizers for browser clients.
//
// Each registered Definition is one state consumer: a template, a storage
// key and a URL namespace. A browser page opens a websocket to
// /ws/{name}?url=<page url>; the server runs a statesync.Synchronizer for
// that page whose Location is the page's address bar. Hydration uses the
// page URL and the persistent store, and every published URL change is
// sent back as a url_replace frame that the client applies with
// history.replaceState.
//
// Storage keys are scoped per client with a random client id cookie, so
// two browsers never share persisted state.
//
// # Routes
//
//	GET  /healthz
//	GET  /metrics
//	GET  /statesync.js
//	GET  /api/palette?q=<query>
//	GET  /api/{name}/state?<query>
//	POST /api/{name}/share
//	GET  /ws/{name}?url=<page url>
//
// # Frames
//
// Server to client:
//
//	{"type":"state","status":"url-hydrated","state":{...},"shareableUrl":"..."}
//	{"type":"url_replace","url":"https://example.com/calc?thread_x=1"}
//	{"type":"error","error":"..."}
//	{"type":"shutdown"}
//
// Client to server:
//
//	{"type":"update","partial":{...}}
//	{"type":"reset"}
package server
