// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// cn105 - Mitsubishi CN105 heat pump controller
//
// A CLI tool for monitoring, controlling and serving Mitsubishi heat pumps
// over the CN105 serial connector.

package main

import (
	"os"

	"github.com/Thermoquad/cn105/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
