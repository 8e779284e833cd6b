package main

import "github.com/2beens/portfolio/cmd/portfolioctl/cmd"

func main() {
	cmd.Execute()
}
