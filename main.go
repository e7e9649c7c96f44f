package main

import "github.com/wibowo/expense-report/cmd"

func main() {
	cmd.Execute()
}
