// Command quizctl is the terminal client of the quiz portal.
package main

import (
	"os"

	"github.com/SAP-F-2025/quiz-portal/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
