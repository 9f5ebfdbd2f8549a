// Package http implements the HTTP handlers for the Apple Health processing
// service. It is a thin layer between transport and business logic: handlers
// parse and validate requests, delegate to the services package, and format
// responses.
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service
//	                                             ↓
//	HTTP Response ← render.JSON / ServeFile ←────┘
//
// # Sessions
//
// All processing happens inside an upload session. POST /api/sessions
// accepts a multipart upload of export.xml and returns the session ID; every
// other route is nested under /api/sessions/{sessionID} and resolves the
// session through the SessionCtx middleware.
//
// # Error Handling
//
// Errors render as RFC 7807 problem details:
//
//	{
//	    "type": ".../malformed-source",
//	    "title": "Export File Malformed",
//	    "status": 422,
//	    "detail": "export file is not well-formed XML",
//	    "instance": "/api/sessions/1f2e.../types",
//	    "error_code": "MALFORMED_SOURCE",
//	    "trace_id": "..."
//	}
//
// Mid-stream XML failures map to 422, unknown sessions and files to 404,
// oversized uploads to 413 and selector validation failures to 400.
package http
