package message

import "fmt"

// Kind classifies protocol errors; it is also the metrics label.
type Kind string

const (
	KindDecode    Kind = "decode"
	KindParse     Kind = "parse"
	KindShape     Kind = "shape"
	KindSelection Kind = "selection"
	KindNoPeer    Kind = "no_peer"
	KindPeerGone  Kind = "peer_gone"
)

// Error is a protocol error scoped to one connection. Reply is the text sent
// back to the client in an error frame.
type Error struct {
	Kind  Kind
	Reply string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reply)
}

// Frame renders e as the error frame sent to the client.
func (e *Error) Frame() []byte {
	return Text(TypeError, e.Reply)
}

var (
	ErrNotUTF8  = &Error{Kind: KindDecode, Reply: "The given message can't be decoded, use utf-8"}
	ErrNotJSON  = &Error{Kind: KindParse, Reply: "The given message can't be decoded, use json"}
	ErrBadShape = &Error{Kind: KindShape, Reply: "Error in data"}
	ErrBadID    = &Error{Kind: KindSelection, Reply: "Error: id ; Write another ID"}
	ErrNoClient = &Error{Kind: KindSelection, Reply: "Error : No client "}
	ErrNoPeer   = &Error{Kind: KindNoPeer, Reply: "No client available"}
	ErrPeerGone = &Error{Kind: KindPeerGone, Reply: "Client Error : Try a new Client"}
)
