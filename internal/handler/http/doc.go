// Package http implements the local control API of the sync agent.
//
// A UI shell or any other process on the same machine uses it the way a page
// talks to a background worker: it asks for sync passes, reports
// connectivity, hands over the session token and reads the coordinator
// status. Request tracing and access logging are handled here before
// requests reach the service layer.
package http
