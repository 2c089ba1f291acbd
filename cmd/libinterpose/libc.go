//go:build linux && cgo

package main

/*
#include <stdlib.h>
#include "shim.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/majorcontext/interpose/internal/interpose"
	"github.com/majorcontext/interpose/internal/symbols"
)

// resolveNext is the resolver backend. It shares the C side's per-symbol
// cache, so dlsym runs at most once per symbol whichever side asks first.
func resolveNext(name string) (uintptr, error) {
	op, ok := symbols.ParseOp(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not interposed", symbols.ErrNotFound, name)
	}
	addr := C.ki_resolve(C.int(op))
	if addr == 0 {
		return 0, symbols.ErrNotFound
	}
	return uintptr(addr), nil
}

// libc performs the real calls through the next binding of each symbol. It
// sits behind an interpose.Dispatch, which only hands it calls whose symbol
// resolved.
type libc struct {
	resolver *symbols.Resolver
}

func (l *libc) fn(op symbols.Op) C.uintptr_t {
	addr, _ := l.resolver.Resolve(op)
	return C.uintptr_t(addr)
}

func intResult[T ~int32 | ~int64](ret T, err error) (int, error) {
	if ret < 0 {
		if err == nil {
			err = unix.EIO
		}
		return int(ret), err
	}
	return int(ret), nil
}

func (l *libc) Open(op symbols.Op, path string, flags int, mode uint32) (int, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	fd, err := C.ki_call_open(l.fn(op), cpath, C.int(flags), C.uint(mode))
	return intResult(int32(fd), err)
}

func (l *libc) OpenAt(op symbols.Op, dirfd int, path string, flags int, mode uint32) (int, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	fd, err := C.ki_call_openat(l.fn(op), C.int(dirfd), cpath, C.int(flags), C.uint(mode))
	return intResult(int32(fd), err)
}

func (l *libc) Creat(op symbols.Op, path string, mode uint32) (int, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	fd, err := C.ki_call_creat(l.fn(op), cpath, C.uint(mode))
	return intResult(int32(fd), err)
}

func (l *libc) Fopen(op symbols.Op, path, mode string) (interpose.Stream, error) {
	cpath, cmode := C.CString(path), C.CString(mode)
	defer C.free(unsafe.Pointer(cpath))
	defer C.free(unsafe.Pointer(cmode))
	s, err := C.ki_call_fopen(l.fn(op), cpath, cmode)
	return streamResult(s, err)
}

func (l *libc) Freopen(op symbols.Op, path *string, mode string, s interpose.Stream) (interpose.Stream, error) {
	var cpath *C.char
	if path != nil {
		cpath = C.CString(*path)
		defer C.free(unsafe.Pointer(cpath))
	}
	cmode := C.CString(mode)
	defer C.free(unsafe.Pointer(cmode))
	ns, err := C.ki_call_freopen(l.fn(op), cpath, cmode, C.uintptr_t(s))
	return streamResult(ns, err)
}

func streamResult(s C.uintptr_t, err error) (interpose.Stream, error) {
	if s == 0 {
		if err == nil {
			err = unix.EIO
		}
		return 0, err
	}
	return interpose.Stream(s), nil
}

func (l *libc) Fileno(s interpose.Stream) int {
	return int(C.ki_fileno(C.uintptr_t(s)))
}

func (l *libc) Close(fd int) error {
	ret, err := C.ki_call_close(l.fn(symbols.Close), C.int(fd))
	_, err = intResult(int32(ret), err)
	return err
}

func (l *libc) Fclose(s interpose.Stream) error {
	ret, err := C.ki_call_fclose(l.fn(symbols.Fclose), C.uintptr_t(s))
	if ret != 0 {
		if err == nil {
			err = unix.EIO
		}
		return err
	}
	return nil
}

func (l *libc) Read(fd int, p []byte) (int, error) {
	n, err := C.ki_call_read(l.fn(symbols.Read), C.int(fd), unsafe.Pointer(unsafe.SliceData(p)), C.size_t(len(p)))
	return intResult(int64(n), err)
}

func (l *libc) Write(fd int, p []byte) (int, error) {
	n, err := C.ki_call_write(l.fn(symbols.Write), C.int(fd), unsafe.Pointer(unsafe.SliceData(p)), C.size_t(len(p)))
	return intResult(int64(n), err)
}

// newCalls wires the libc bindings behind a Dispatch with raw-syscall
// fallbacks.
func newCalls(resolver *symbols.Resolver) interpose.Calls {
	return &interpose.Dispatch{
		Resolver: resolver,
		Bound:    &libc{resolver: resolver},
		Fallback: interpose.Syscalls{},
	}
}

var _ interpose.Calls = (*libc)(nil)
