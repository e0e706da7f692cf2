package main

import "github.com/PrinceBashangezi/CS181NW-P2/cmd"

func main() {
	cmd.Execute()
}
