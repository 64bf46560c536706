//go:build windows

package supervisor

import "os/exec"

// setProcessGroup is a no-op on Windows. A job-object based group-kill
// would be the correct fix; tracked as a known gap rather than implemented
// here.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills only the direct child on Windows. Descendant MCP
// server processes may be left running; see setProcessGroup.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
