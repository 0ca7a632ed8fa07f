//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// lowNiceness is the niceness applied for PriorityLow.
const lowNiceness = 10

// isolate puts the child in its own process group so cancellation can reach
// everything it spawns and terminal signals do not.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate asks the process (or its whole group) to exit.
func terminate(p *os.Process, group bool) error {
	if p == nil {
		return nil
	}
	if !group {
		return p.Signal(unix.SIGTERM)
	}
	err := unix.Kill(-p.Pid, unix.SIGTERM)
	if err == unix.ESRCH {
		return os.ErrProcessDone
	}
	return err
}

// killGroup force-kills whatever is left of the process group led by pid.
func killGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGKILL)
}

func lowerPriority(pid int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, pid, lowNiceness)
}
