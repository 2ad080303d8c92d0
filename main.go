// SPDX-License-Identifier: MPL-2.0

package main

import cmd "fedhost/cmd/fedhost"

func main() {
	cmd.Execute()
}
