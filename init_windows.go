//go:build windows

package main

import "syscall"

const codePageUTF8 = 65001

// init switches the console to UTF-8 so chat names print correctly in list output
func init() {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	for _, name := range []string{"SetConsoleOutputCP", "SetConsoleCP"} {
		kernel32.NewProc(name).Call(uintptr(codePageUTF8))
	}
}
