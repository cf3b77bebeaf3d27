package lattice

import "github.com/vmihailenco/msgpack/v5"

func marshalState(s State) ([]byte, error) {
	return msgpack.Marshal(s)
}
