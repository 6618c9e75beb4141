// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"bytes"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Output is the default destination for buffered world logs.
var Output io.Writer = os.Stdout

var (
	mu           sync.Mutex
	addinOutput  bytes.Buffer
	hostOSOutput bytes.Buffer
)

const outputLimit = 1024
const flushChr = 0x0a // \n

func buffer(addin bool) *bytes.Buffer {
	if addin {
		return &addinOutput
	}

	return &hostOSOutput
}

// BufferedStdoutLog buffers one character of console output from either
// world, flushing it to Output on newline to avoid interleaved logs.
func BufferedStdoutLog(c byte, addin bool) {
	mu.Lock()
	defer mu.Unlock()

	buf := buffer(addin)
	buf.WriteByte(c)

	if c == flushChr || buf.Len() > outputLimit {
		Output.Write(buf.Bytes())
		buf.Reset()
	}
}

// BufferedTermLog is like BufferedStdoutLog but writes to a terminal, with
// add-in world output in green and host world output in red.
func BufferedTermLog(c byte, addin bool, t *term.Terminal) {
	mu.Lock()
	defer mu.Unlock()

	var color []byte

	buf := buffer(addin)

	if addin {
		color = t.Escape.Green
	} else {
		color = t.Escape.Red
	}

	buf.WriteByte(c)

	if c == flushChr || buf.Len() > outputLimit {
		t.Write(color)
		t.Write(buf.Bytes())
		t.Write(t.Escape.Reset)

		buf.Reset()
	}
}
