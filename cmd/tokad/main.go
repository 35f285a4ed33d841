// Command tokad is the reference composition root for Toka OS: it
// wires the kernel, bus, and a storage backend into one process and
// exposes a thin HTTP surface alongside a small operator CLI. It lives
// entirely outside internal/ — the core itself is a library with no
// opinion on transport, config format, or CLI shape.
package main

import (
	"github.com/toka-os/toka-core/cmd/tokad/cmd"
)

func main() {
	cmd.Execute()
}
