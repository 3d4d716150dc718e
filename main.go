// main.go
package main

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/AndreyZakrevsky/btt/cmd"
)

const banner = `
   ___.   __    __
   \_ |__/  |__/  |_
    | __ \   __\   __\
    | \_\ \  |  |  |
    |___  /__|  |__|
        \/

	Binance Trade Terminal -- sell high, buy it all back low
[]=========================================================[]
`

func main() {
	// Explicitly print banner FIRST
	fmt.Print(banner + "\n")

	// Secrets live in .env during development; a missing file is fine.
	_ = godotenv.Load()

	cmd.Execute()
}
