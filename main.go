package main

import "github.com/zignal/zignalapi/cmd"

func main() {
	cmd.Execute()
}
