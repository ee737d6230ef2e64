// Command se-interpreter runs Selenium Builder JSON scripts.
package main

import "github.com/devicelab-dev/se-interpreter/pkg/cli"

func main() {
	cli.Execute()
}
