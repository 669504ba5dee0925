package main

import (
	"github.com/n7cw/cwkeyer/cmd"
	"github.com/n7cw/cwkeyer/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
