// Package frame provides the HIL wire protocol.
package frame

// The HIL protocol is spoken between the host test controller and the
// HIL board over a serial link. Every unit on the wire, request or
// response, is the same fixed frame:
//
//	[start][command][channel][signal][value lo][value hi][checksum][end]
//
// There is no length field, no sequence number and no retransmission.
// The checksum is a plain XOR of the payload bytes, which misses an even
// number of compensating bit flips; peers rely on that exact algorithm
// so it must not be strengthened.
//
// Producer: host test controller (requests), HIL board (responses)
// Consumer: HIL board (requests), host test controller (responses)
