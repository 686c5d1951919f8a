package main

import "github.com/oshokin/webstart-packager/cmd/webstart-packager/cmd"

func main() {
	cmd.Execute()
}
