package core

// Frame is an encoded event ready for the wire.
type Frame []byte

// ConnID identifies one physical client connection.
type ConnID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
