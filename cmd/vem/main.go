// Command vem manages isolated Vim configuration environments.
package main

import (
	"os"

	"github.com/vem-project/vem/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
