//go:build !unix

package probe

import "syscall"

func controlReuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
