package main

import "github.com/assanpay/gateway/cmd"

func main() {
	cmd.Execute()
}
