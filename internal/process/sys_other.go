//go:build !unix

package process

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

func isolate(*exec.Cmd) {}

func terminate(p *os.Process, _ bool) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

func killGroup(int) {}

func lowerPriority(int) error {
	return fmt.Errorf("priority hints are not supported on %s", runtime.GOOS)
}
