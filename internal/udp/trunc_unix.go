//go:build linux || darwin || freebsd || netbsd || openbsd

package udp

import "golang.org/x/sys/unix"

const msgTrunc = unix.MSG_TRUNC
