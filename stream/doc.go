// Package stream broadcasts deliberation progress to live subscribers.
//
// A Broadcaster attaches to a session as an observer and fans each sealed
// round and the final decision out to every subscribed connection. The
// bundled connection type adapts a WebSocket; anything implementing
// EventConnection can subscribe.
package stream
