// Package service runs discovery passes over an organization.
//
// Discovery lists networks and inventory, fans out per-device fetches on a shared worker
// pool, reconstructs the neighbor graph and renders it per site. Everything it learned,
// including the fetches that failed, is returned as a Report.
//
// Progress is published on an EventBus so the HTTP layer can stream it to clients.
package service
