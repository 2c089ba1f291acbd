//go:build linux && cgo

package main

/*
#include "shim.h"
*/
import "C"

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/majorcontext/interpose/internal/interpose"
	"github.com/majorcontext/interpose/internal/log"
	"github.com/majorcontext/interpose/internal/symbols"
)

// maxRW is the most Linux transfers in a single read or write.
const maxRW = 0x7ffff000

func setErrno(errp *C.int, err error) {
	if err == nil || errp == nil {
		return
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		*errp = C.int(errno)
		return
	}
	*errp = C.int(unix.EIO)
}

func goPath(p *C.char) *string {
	if p == nil {
		return nil
	}
	s := C.GoString(p)
	return &s
}

// buffer views host memory without copying.
func buffer(buf unsafe.Pointer, count C.size_t) []byte {
	n := uint64(count)
	if n > maxRW {
		n = maxRW
	}
	return unsafe.Slice((*byte)(buf), int(n))
}

//export kiOpen
func kiOpen(op C.int, path *C.char, flags C.int, mode C.uint, errp *C.int) C.int {
	fd, err := tracer.Open(symbols.Op(op), C.GoString(path), int(flags), uint32(mode))
	setErrno(errp, err)
	return C.int(fd)
}

//export kiOpenAt
func kiOpenAt(op C.int, dirfd C.int, path *C.char, flags C.int, mode C.uint, errp *C.int) C.int {
	fd, err := tracer.OpenAt(symbols.Op(op), int(dirfd), C.GoString(path), int(flags), uint32(mode))
	setErrno(errp, err)
	return C.int(fd)
}

//export kiCreat
func kiCreat(op C.int, path *C.char, mode C.uint, errp *C.int) C.int {
	fd, err := tracer.Creat(symbols.Op(op), C.GoString(path), uint32(mode))
	setErrno(errp, err)
	return C.int(fd)
}

//export kiFopen
func kiFopen(op C.int, path, mode *C.char, errp *C.int) C.uintptr_t {
	s, err := tracer.Fopen(symbols.Op(op), C.GoString(path), C.GoString(mode))
	setErrno(errp, err)
	return C.uintptr_t(s)
}

//export kiFreopen
func kiFreopen(op C.int, path, mode *C.char, stream C.uintptr_t, errp *C.int) C.uintptr_t {
	s, err := tracer.Freopen(symbols.Op(op), goPath(path), C.GoString(mode), interpose.Stream(stream))
	setErrno(errp, err)
	return C.uintptr_t(s)
}

//export kiClose
func kiClose(fd C.int, errp *C.int) C.int {
	if err := tracer.Close(int(fd)); err != nil {
		setErrno(errp, err)
		return -1
	}
	return 0
}

//export kiFclose
func kiFclose(stream C.uintptr_t, errp *C.int) C.int {
	if err := tracer.Fclose(interpose.Stream(stream)); err != nil {
		setErrno(errp, err)
		return -1 // EOF
	}
	return 0
}

//export kiRead
func kiRead(fd C.int, buf unsafe.Pointer, count C.size_t, errp *C.int) C.ssize_t {
	n, err := tracer.Read(int(fd), buffer(buf, count))
	if err != nil {
		setErrno(errp, err)
		return -1
	}
	return C.ssize_t(n)
}

//export kiWrite
func kiWrite(fd C.int, buf unsafe.Pointer, count C.size_t, errp *C.int) C.ssize_t {
	n, err := tracer.Write(int(fd), buffer(buf, count))
	if err != nil {
		setErrno(errp, err)
		return -1
	}
	return C.ssize_t(n)
}

// kiStop runs from the library destructor at process exit.
//
//export kiStop
func kiStop() {
	if err := tracer.Stop(); err != nil {
		log.Warn("finalizing trace", "error", err)
	}
	log.Close()
}

// kiReady does nothing. The library constructor calls it because a call
// into Go from a C thread waits for package initialization to finish.
//
//export kiReady
func kiReady() {}
