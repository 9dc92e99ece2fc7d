package main

import "github.com/frahmantamala/hoa-reimbursement/cmd"

func main() {
	cmd.Execute()
}
