//go:build linux

package gpstimer

import (
	"time"

	"golang.org/x/sys/unix"
)

// toggleDTR forces a hardware reset of the timer board by dropping DTR and
// raising it again, mirroring the bootloader escape used when the board
// powers on stuck in its USB bootloader.
func toggleDTR(f interface{ Fd() uintptr }) error {
	fd := int(f.Fd())
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCMBIC, unix.TIOCM_DTR); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, unix.TIOCM_DTR)
}
