// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/modkit/modkit/cmd/modkit"

func main() {
	cmd.Execute()
}
