// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package worker

import "os/exec"

func configurePlatform(cmd *exec.Cmd) {}

func signalTerminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func signalKill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
