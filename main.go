// Copyright © 2024 The QDAP authors

package main

import "github.com/luthersystems/qdap/cmd"

func main() {
	cmd.Execute()
}
