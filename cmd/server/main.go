package main

import "github.com/whenitworks/backend/internal/cli"

func main() {
	cli.Execute()
}
