/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/dlms-org/apiserver/cmd"

func main() {
	cmd.Execute()
}
