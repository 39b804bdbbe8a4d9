package reader

import "github.com/coreos/pkg/dlopen"

import "C"

// ReadTypeInfo loads the shared library at from and returns the C string
// stored at symbol.
func ReadTypeInfo(from, symbol string) (string, error) {
	handle, err := dlopen.GetHandle([]string{from})
	if err != nil {
		return "", err
	}
	defer handle.Close()

	sym, err := handle.GetSymbolPointer(symbol)
	if err != nil {
		return "", err
	}

	return C.GoString((*C.char)(sym)), nil
}
