// Kartta - application-resource mapping reports
// Fetch. Join. Report.
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// credentials may sit in a local .env on developer machines;
	// CI injects real environment variables
	_ = godotenv.Load()

	Execute()
}
