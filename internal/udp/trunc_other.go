//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package udp

// Truncated datagrams are not detected here.
const msgTrunc = 0
