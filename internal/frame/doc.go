// Package frame turns text read from a server-sent-event stream into JSON messages.
//
// Only the data field is recognised. A frame is the text between the literal
// marker "data: " and the next newline:
//
//	data: {"a":1}
//	data: {"b":2}
//
// Decode works on a single chunk and treats the end of the chunk as the end of
// the last frame. Decoder carries an unterminated trailing frame over to the
// next chunk so payloads split across transport reads are reassembled.
package frame
