package main

import "promo-stop-alerts/internal/cli"

func main() {
	cli.Execute()
}
