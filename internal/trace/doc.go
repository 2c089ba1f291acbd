// Package trace writes and reads kickstart interposition trace files.
//
// # Format
//
// A trace is a sequence of text lines, one event per line, each starting
// with a label:
//
//	exe: /usr/bin/python3
//	start: 1700000000.123456
//	file: /data/in.txt 4096 150 0
//	utime: 0.120000
//	stime: 0.010000
//	Pid:	4242
//	rchar: 8123
//	stop: 1700000001.654321
//
// file: lines carry the canonical path, the size of the file when it was
// closed, and the bytes read and written through that descriptor. Process
// status and I/O accounting lines are passed through in the kernel's own
// "Key: value" form.
//
// # Writing
//
//	sink, err := trace.Open(trace.PathFor(prefix, os.Getpid()))
//	if err != nil {
//	    // tracing disabled; a nil *Sink ignores every emission
//	}
//	sink.EmitStart(time.Now())
//	defer sink.Close()
//
// Sink writes go straight to the kernel through os.File and never pass
// through the libc functions the preload library interposes.
package trace
