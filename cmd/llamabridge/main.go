// Command llamabridge runs the proxy's CLI.
package main

import "github.com/llamabridge/llamabridge/cmd"

func main() {
	cmd.Execute()
}
