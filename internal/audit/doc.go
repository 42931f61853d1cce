// Package audit relays security events to sinks off the request path.
//
// [Dispatcher] buffers events and forwards them to one [Sink] on a single
// goroutine. With DropIfFull a full buffer drops the event and counts it;
// otherwise Emit blocks until there is room or the caller's context ends.
//
// Sinks shipped here: [NoOpSink], [ChannelSink], [JSONWriterSink],
// [LogSink] (zerolog), [SentrySink] and [MultiSink].
//
// The package never decides which events exist. Event names and error codes
// are owned by the engine.
package audit
