// Package device allocates and tracks per-browser device ids.
//
// A device id is an opaque random string identifying a browser or client
// installation. It is generated once, persisted by the client in a
// long-lived cookie or local storage, and echoed back on every request. It
// is a client identity, not a user identity: login, logout and failed login
// sequences never reset it, which makes it usable to correlate activity
// across logins.
//
// The server keeps a mirror record per device id for audit and correlation.
// Repositories exist in-memory and on PostgreSQL; NewNoOpDeviceService
// disables server-side tracking entirely while still allocating ids.
//
// # Basic Usage
//
//	repo := device.NewInMemDeviceRepository()
//	service := device.NewDeviceService(repo)
//
//	// Returns the presented id untouched, or allocates a fresh one.
//	deviceID, err := service.EnsureDeviceID(ctx, presentedID, userAgent)
package device
