// Command tganalytics collects and analyses Telegram channels.
package main

import "github.com/ibeckermayer/tganalytics/internal/cli"

func main() {
	cli.Execute()
}
