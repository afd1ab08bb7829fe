package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"github.com/halcyon-labs/vassist/internal/ipc"
)

func main() {
	socketPath := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Unix socket path")
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := ipc.NewClient(*socketPath)

	switch args[0] {
	case "prompt":
		if len(args) < 2 {
			fmt.Println("usage: vassistctl prompt <text>")
			os.Exit(1)
		}
		reply, err := client.Prompt(args[1])
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		fmt.Println(reply)

	case "interrupt", "shutdown":
		if err := client.Control(args[0]); err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: vassistctl [-s socket] <prompt <text>|interrupt|shutdown>")
}
