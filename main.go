package main

import "ratfun/tripgraph/cmd"

func main() {
	cmd.Execute()
}
