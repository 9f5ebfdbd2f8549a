// Package app provides application initialization and lifecycle management
// for the Apple Health processing service. It wires configuration, logging,
// the WebSocket hub, the session manager and the HTTP transport together at
// startup and owns graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize logging
//	3. Resolve and create the data directories
//	4. Start the WebSocket hub and build the services
//	5. Set up the router and middleware chain
//	6. Configure the HTTP server
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests within
// the configured shutdown timeout and stops the hub. Initialization errors
// are returned to the caller; the package never calls os.Exit itself.
package app
