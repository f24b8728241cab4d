//go:build windows

package native

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var winDLL *windows.DLL

func openLibrary(path string) (uintptr, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return 0, fmt.Errorf("LoadDLL: %w", err)
	}
	winDLL = dll
	return uintptr(dll.Handle), nil
}

func findSymbol(_ uintptr, name string) (uintptr, error) {
	if winDLL == nil {
		return 0, fmt.Errorf("library not loaded")
	}
	proc, err := winDLL.FindProc(name)
	if err != nil {
		return 0, fmt.Errorf("FindProc(%s): %w", name, err)
	}
	return proc.Addr(), nil
}

func closeLibrary(_ uintptr) error {
	if winDLL == nil {
		return nil
	}
	err := winDLL.Release()
	winDLL = nil
	return err
}
