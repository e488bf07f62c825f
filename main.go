// Command flowsim runs discrete-event simulations of queueing networks.
package main

import "github.com/sarchlab/flowsim/cmd"

func main() {
	cmd.Execute()
}
