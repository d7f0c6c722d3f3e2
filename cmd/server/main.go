// @title           Realty API
// @version         1.0
// @description     Accounts, OTP verification and paid listing tiers.
// @BasePath        /
package main

import (
	"fmt"
	"os"

	"realty/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "realty:", err)
		os.Exit(1)
	}
}
