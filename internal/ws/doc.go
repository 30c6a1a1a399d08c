/*
Package ws is the client side of the terminal WebSocket protocol.

A connection carries JSON frames. The server sends ready, data (base64
payload), exit, error and metadata frames; the client sends a resize frame
right after opening, then input frames and an optional close.

Conn hides gorilla/websocket behind three methods so the terminal manager
can run against a fake in tests. Writes on one Conn are serialized.
*/
package ws
